package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
)

type assistantFake struct {
	result *domain.TurnResult
	err    error

	gotConversationID string
	gotText           string
}

func (f *assistantFake) HandleTurn(_ context.Context, conversationID, userText string) (*domain.TurnResult, error) {
	f.gotConversationID = conversationID
	f.gotText = userText
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type indexerFake struct {
	err error

	gotPassages []domain.Passage
}

func (f *indexerFake) IndexPassages(_ context.Context, passages []domain.Passage) error {
	f.gotPassages = passages
	return f.err
}

type turnListerFake struct {
	turns []domain.Turn
	err   error

	gotConversationID string
	gotLimit          int
}

func (f *turnListerFake) EnsureConversation(_ context.Context, conversationID string) (*domain.Conversation, error) {
	return &domain.Conversation{ConversationID: conversationID}, nil
}

func (f *turnListerFake) NextSeq(context.Context, string) (int, error) { return 1, nil }

func (f *turnListerFake) AppendTurn(context.Context, domain.Turn) error { return nil }

func (f *turnListerFake) ListRecentTurns(_ context.Context, conversationID string, limit int) ([]domain.Turn, error) {
	f.gotConversationID = conversationID
	f.gotLimit = limit
	return f.turns, f.err
}

func postTurn(t *testing.T, handler http.Handler, payload map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/turns", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHandleTurnReturnsAssistantResult(t *testing.T) {
	assistant := &assistantFake{result: &domain.TurnResult{
		ConversationID: "conv-1",
		State:          domain.StateDone,
		Intent:         domain.IntentLegalQuery,
		Domain:         domain.CategoryLabor,
		Answer: &domain.Answer{
			Text:       "Probation is capped at three months.",
			Citations:  []domain.Citation{{PassageID: "lab-88", Article: "Article 88"}},
			Confidence: domain.ConfidenceHigh,
		},
		Retrieved: 10,
		Verified:  3,
	}}
	handler := NewRouter(assistant, nil, nil, RouterOptions{}).Handler()

	res := postTurn(t, handler, map[string]any{
		"conversation_id": "conv-1",
		"text":            "How long can a probation period last?",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if assistant.gotConversationID != "conv-1" {
		t.Fatalf("conversation id passed = %q", assistant.gotConversationID)
	}

	var result domain.TurnResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.State != domain.StateDone || result.Answer == nil {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Answer.Citations[0].PassageID != "lab-88" {
		t.Fatalf("unexpected citations: %+v", result.Answer.Citations)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestHandleTurnRejectsEmptyText(t *testing.T) {
	assistant := &assistantFake{}
	handler := NewRouter(assistant, nil, nil, RouterOptions{}).Handler()

	res := postTurn(t, handler, map[string]any{"conversation_id": "conv-1", "text": "   "})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if assistant.gotText != "" {
		t.Fatalf("assistant should not be called for empty text")
	}
}

func TestHandleTurnRejectsNonPost(t *testing.T) {
	handler := NewRouter(&assistantFake{}, nil, nil, RouterOptions{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/turns", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestHandleTurnMapsErrorKindsToStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "turn", errors.New("empty")), http.StatusBadRequest},
		{"classification", domain.WrapError(domain.ErrClassification, "classify", errors.New("malformed")), http.StatusUnprocessableEntity},
		{"retrieval down", domain.WrapError(domain.ErrRetrievalUnavailable, "retrieve", errors.New("both signals failed")), http.StatusServiceUnavailable},
		{"synthesis", domain.WrapError(domain.ErrSynthesis, "synthesize", errors.New("empty output")), http.StatusBadGateway},
		{"temporary", domain.WrapError(domain.ErrTemporary, "generate", errors.New("ollama 503")), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewRouter(&assistantFake{err: tc.err}, nil, nil, RouterOptions{}).Handler()
			res := postTurn(t, handler, map[string]any{"conversation_id": "c", "text": "q"})
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
		})
	}
}

func TestHandleTurnHidesUpstreamDetail(t *testing.T) {
	wrapped := domain.WrapError(domain.ErrSynthesis, "synthesize", errors.New("ollama http 500 at 10.0.0.3"))
	handler := NewRouter(&assistantFake{err: wrapped}, nil, nil, RouterOptions{}).Handler()

	res := postTurn(t, handler, map[string]any{"conversation_id": "c", "text": "q"})
	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "answer generation failed, please retry shortly" {
		t.Fatalf("unexpected error message: %q", resp["error"])
	}
}

func TestHealthzReturnsOK(t *testing.T) {
	handler := NewRouter(&assistantFake{}, nil, nil, RouterOptions{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestIndexPassagesAcceptsBatch(t *testing.T) {
	indexer := &indexerFake{}
	handler := NewRouter(&assistantFake{}, indexer, nil, RouterOptions{}).Handler()

	payload, _ := json.Marshal(map[string]any{"passages": []domain.Passage{
		{ID: "lab-88", Category: domain.CategoryLabor, Article: "Article 88", Text: "Probation text"},
	}})
	req := httptest.NewRequest(http.MethodPost, "/v1/passages", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if len(indexer.gotPassages) != 1 || indexer.gotPassages[0].ID != "lab-88" {
		t.Fatalf("unexpected passages: %+v", indexer.gotPassages)
	}
}

func TestIndexPassagesRejectsEmptyBatch(t *testing.T) {
	handler := NewRouter(&assistantFake{}, &indexerFake{}, nil, RouterOptions{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/passages", bytes.NewReader([]byte(`{"passages": []}`)))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestIndexPassagesWithoutIndexerReturns501(t *testing.T) {
	handler := NewRouter(&assistantFake{}, nil, nil, RouterOptions{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/passages", bytes.NewReader([]byte(`{"passages": [{"id": "a"}]}`)))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", res.Code)
	}
}

func TestListConversationTurnsReturnsHistory(t *testing.T) {
	lister := &turnListerFake{turns: []domain.Turn{
		{ID: "turn-1", ConversationID: "conv-1", Role: domain.RoleUser, Content: "question", Seq: 1},
		{ID: "turn-2", ConversationID: "conv-1", Role: domain.RoleAssistant, Content: "answer", Seq: 2},
	}}
	handler := NewRouter(&assistantFake{}, nil, nil, RouterOptions{Conversations: lister}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations/conv-1/turns", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if lister.gotConversationID != "conv-1" {
		t.Fatalf("conversation id passed = %q", lister.gotConversationID)
	}
	if lister.gotLimit != 50 {
		t.Fatalf("limit passed = %d", lister.gotLimit)
	}

	var resp struct {
		ConversationID string        `json:"conversation_id"`
		Turns          []domain.Turn `json:"turns"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ConversationID != "conv-1" || len(resp.Turns) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestListConversationTurnsRejectsMalformedPath(t *testing.T) {
	handler := NewRouter(&assistantFake{}, nil, nil, RouterOptions{Conversations: &turnListerFake{}}).Handler()

	for _, path := range []string{
		"/v1/conversations//turns",
		"/v1/conversations/conv-1",
		"/v1/conversations/conv-1/other",
		"/v1/conversations/a/b/turns",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusNotFound {
			t.Fatalf("path %s: expected 404, got %d", path, res.Code)
		}
	}
}

func TestRequestIDMiddlewarePreservesCallerID(t *testing.T) {
	handler := NewRouter(&assistantFake{}, nil, nil, RouterOptions{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "caller-supplied")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get("X-Request-Id"); got != "caller-supplied" {
		t.Fatalf("expected caller request id echoed, got %q", got)
	}
}
