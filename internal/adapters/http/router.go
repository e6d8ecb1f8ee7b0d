package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/ports"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/observability/metrics"
)

type RouterOptions struct {
	Service        string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	AdmissionWait  time.Duration
	Metrics        *metrics.HTTPServerMetrics
	Conversations  ports.ConversationStore
}

type Router struct {
	assistant ports.Assistant
	indexer   ports.PassageIndexer
	logger    *slog.Logger
	opts      RouterOptions
}

func NewRouter(
	assistant ports.Assistant,
	indexer ports.PassageIndexer,
	logger *slog.Logger,
	opts RouterOptions,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Service == "" {
		opts.Service = "api"
	}
	return &Router{
		assistant: assistant,
		indexer:   indexer,
		logger:    logger,
		opts:      opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/turns", rt.handleTurn)
	mux.HandleFunc("/v1/passages", rt.indexPassages)
	mux.HandleFunc("/v1/conversations/", rt.listConversationTurns)
	if rt.opts.Metrics != nil {
		mux.Handle("/metrics", rt.opts.Metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.Service, handler)
	}
	if rt.opts.MaxInFlight > 0 {
		wait := rt.opts.AdmissionWait
		if wait <= 0 {
			wait = 100 * time.Millisecond
		}
		handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, wait)
	}
	if rt.opts.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) handleTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		ConversationID string `json:"conversation_id"`
		Text           string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	start := time.Now()
	result, err := rt.assistant.HandleTurn(r.Context(), req.ConversationID, req.Text)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		rt.logger.Error("turn failed",
			"request_id", requestIDFromContext(r.Context()),
			"conversation_id", req.ConversationID,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		rt.recordTurnMetrics(result, string(domain.StateFailed), time.Since(start))
		writeJSON(w, status, map[string]string{"error": userFacingError(err)})
		return
	}

	rt.recordTurnMetrics(result, string(result.State), time.Since(start))
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) recordTurnMetrics(result *domain.TurnResult, state string, duration time.Duration) {
	if rt.opts.Metrics == nil {
		return
	}
	pipeline := rt.opts.Metrics.Pipeline()

	intent := ""
	if result != nil {
		intent = string(result.Intent)
	}
	pipeline.RecordTurn(rt.opts.Service, state, intent, duration)
	if result == nil {
		return
	}
	if result.Answer != nil {
		pipeline.RecordAnswerCounts(rt.opts.Service, result.Retrieved, result.Verified)
		pipeline.RecordAnswerConfidence(rt.opts.Service, string(result.Answer.Confidence))
	}
	if result.Clarification != nil {
		pipeline.RecordClarification(rt.opts.Service, string(result.Domain))
	}
}

func (rt *Router) indexPassages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.indexer == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "passage indexing is not configured"})
		return
	}

	var req struct {
		Passages []domain.Passage `json:"passages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Passages) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "passages are required"})
		return
	}

	if err := rt.indexer.IndexPassages(r.Context(), req.Passages); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": userFacingError(err)})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"indexed": len(req.Passages)})
}

func (rt *Router) listConversationTurns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.opts.Conversations == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "conversation history is not configured"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/conversations/")
	conversationID, ok := strings.CutSuffix(rest, "/turns")
	if !ok || conversationID == "" || strings.Contains(conversationID, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	turns, err := rt.opts.Conversations.ListRecentTurns(r.Context(), conversationID, 50)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": userFacingError(err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID,
		"turns":           turns,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
