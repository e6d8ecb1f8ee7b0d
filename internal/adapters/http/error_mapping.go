package httpadapter

import (
	"net/http"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrClassification):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrPassageNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrSynthesis):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrRetrievalUnavailable),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// userFacingError keeps upstream detail out of responses. Internal
// breakdowns all read the same to the caller.
func userFacingError(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "message text is required"
	case domain.IsKind(err, domain.ErrClassification):
		return "could not understand the question, please rephrase it"
	case domain.IsKind(err, domain.ErrRetrievalUnavailable):
		return "search is temporarily unavailable, please retry shortly"
	case domain.IsKind(err, domain.ErrSynthesis):
		return "answer generation failed, please retry shortly"
	case domain.IsKind(err, domain.ErrPassageNotFound):
		return "passage not found"
	case domain.IsKind(err, domain.ErrTemporary):
		return "service is temporarily unavailable, please retry shortly"
	default:
		return "internal error"
	}
}
