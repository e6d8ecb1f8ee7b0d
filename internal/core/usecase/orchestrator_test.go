package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
)

type classifierStub struct {
	cls domain.IntentClassification
	err error
}

func (s *classifierStub) Classify(context.Context, string, []domain.Turn) (domain.IntentClassification, error) {
	return s.cls, s.err
}

type clarifierStub struct {
	request *domain.ClarificationRequest
	err     error
	called  bool
}

func (s *clarifierStub) Clarify(context.Context, string, domain.LawCategory) (*domain.ClarificationRequest, error) {
	s.called = true
	return s.request, s.err
}

type retrieverStub struct {
	candidates []domain.Candidate
	err        error
	filter     domain.SearchFilter
	called     bool
}

func (s *retrieverStub) Retrieve(_ context.Context, _ string, _ int, filter domain.SearchFilter) ([]domain.Candidate, error) {
	s.called = true
	s.filter = filter
	return s.candidates, s.err
}

type rerankerStub struct{ called bool }

func (s *rerankerStub) Rerank(_ string, candidates []domain.Candidate) []domain.Candidate {
	s.called = true
	return candidates
}

type verifierStub struct {
	verified []domain.VerifiedCandidate
	err      error
}

func (s *verifierStub) Verify(context.Context, string, []domain.Candidate) ([]domain.VerifiedCandidate, error) {
	return s.verified, s.err
}

type synthesizerStub struct {
	answer *domain.Answer
	err    error
}

func (s *synthesizerStub) Synthesize(context.Context, string, domain.LawCategory, []domain.VerifiedCandidate) (*domain.Answer, error) {
	return s.answer, s.err
}

type conversationStoreFake struct {
	seq   int
	turns []domain.Turn
}

func (f *conversationStoreFake) EnsureConversation(_ context.Context, conversationID string) (*domain.Conversation, error) {
	return &domain.Conversation{ConversationID: conversationID}, nil
}

func (f *conversationStoreFake) NextSeq(context.Context, string) (int, error) {
	f.seq++
	return f.seq, nil
}

func (f *conversationStoreFake) AppendTurn(_ context.Context, turn domain.Turn) error {
	f.turns = append(f.turns, turn)
	return nil
}

func (f *conversationStoreFake) ListRecentTurns(context.Context, string, int) ([]domain.Turn, error) {
	return f.turns, nil
}

type auditFake struct {
	audits []domain.TurnAudit
}

func (f *auditFake) PublishTurnAudit(_ context.Context, audit domain.TurnAudit) error {
	f.audits = append(f.audits, audit)
	return nil
}

type orchestratorFixture struct {
	classifier    *classifierStub
	clarifier     *clarifierStub
	retriever     *retrieverStub
	reranker      *rerankerStub
	verifier      *verifierStub
	synthesizer   *synthesizerStub
	conversations *conversationStoreFake
	audit         *auditFake
	uc            *AssistantUseCase
}

func newFixture(cls domain.IntentClassification) *orchestratorFixture {
	f := &orchestratorFixture{
		classifier: &classifierStub{cls: cls},
		clarifier: &clarifierStub{request: &domain.ClarificationRequest{
			Questions: []string{"q1?", "q2?"},
			Reasoning: "details missing",
		}},
		retriever: &retrieverStub{candidates: []domain.Candidate{
			{Passage: domain.Passage{ID: "p1", Text: "text"}},
		}},
		reranker: &rerankerStub{},
		verifier: &verifierStub{verified: []domain.VerifiedCandidate{
			{Candidate: domain.Candidate{Passage: domain.Passage{ID: "p1"}}},
		}},
		synthesizer: &synthesizerStub{answer: &domain.Answer{
			Text:       "grounded answer",
			Citations:  []domain.Citation{{PassageID: "p1"}},
			Confidence: domain.ConfidenceMedium,
		}},
		conversations: &conversationStoreFake{},
		audit:         &auditFake{},
	}
	f.uc = NewAssistantUseCase(
		f.classifier,
		f.clarifier,
		f.retriever,
		f.reranker,
		f.verifier,
		f.synthesizer,
		f.conversations,
		f.audit,
		nil,
		AssistantOptions{},
	)
	return f
}

func TestHandleTurnAnswersClearLegalQuery(t *testing.T) {
	f := newFixture(domain.IntentClassification{
		Intent:  domain.IntentLegalQuery,
		Domain:  domain.CategoryLabor,
		Clarity: domain.ClarityClear,
		Urgency: domain.UrgencyMedium,
	})

	result, err := f.uc.HandleTurn(context.Background(), "conv-1", "can they fire me during probation?")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.State != domain.StateDone {
		t.Fatalf("expected done, got %s", result.State)
	}
	if result.Answer == nil || result.Clarification != nil {
		t.Fatalf("expected answer without clarification, got %+v", result)
	}
	if !f.reranker.called {
		t.Fatalf("expected reranker in the pipeline")
	}
	if f.retriever.filter.Category != domain.CategoryLabor {
		t.Fatalf("expected labor filter, got %q", f.retriever.filter.Category)
	}
	if len(f.conversations.turns) != 2 {
		t.Fatalf("expected user and assistant turns logged, got %d", len(f.conversations.turns))
	}
	if len(f.audit.audits) != 1 || f.audit.audits[0].State != domain.StateDone {
		t.Fatalf("expected done audit record, got %+v", f.audit.audits)
	}
}

func TestHandleTurnNoFilterForOtherDomain(t *testing.T) {
	f := newFixture(domain.IntentClassification{
		Intent:  domain.IntentLegalQuery,
		Domain:  domain.CategoryOther,
		Clarity: domain.ClarityClear,
		Urgency: domain.UrgencyLow,
	})

	if _, err := f.uc.HandleTurn(context.Background(), "conv-1", "question"); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if f.retriever.filter.Category != "" {
		t.Fatalf("expected unfiltered retrieval for other domain, got %q", f.retriever.filter.Category)
	}
}

func TestHandleTurnClarifiesAmbiguousQuery(t *testing.T) {
	f := newFixture(domain.IntentClassification{
		Intent:  domain.IntentLegalQuery,
		Domain:  domain.CategoryLabor,
		Clarity: domain.ClarityNeedsClarification,
		Urgency: domain.UrgencyMedium,
	})

	result, err := f.uc.HandleTurn(context.Background(), "conv-1", "they fired me")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Clarification == nil || result.Answer != nil {
		t.Fatalf("expected clarification without answer, got %+v", result)
	}
	if len(result.Clarification.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(result.Clarification.Questions))
	}
	if f.retriever.called {
		t.Fatalf("retrieval must not run on a clarification turn")
	}
}

func TestHandleTurnGeneralChatSkipsPipeline(t *testing.T) {
	f := newFixture(domain.IntentClassification{
		Intent:  domain.IntentGeneralChat,
		Domain:  domain.CategoryOther,
		Clarity: domain.ClarityClear,
		Urgency: domain.UrgencyLow,
	})

	result, err := f.uc.HandleTurn(context.Background(), "conv-1", "hello!")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Answer == nil || result.Answer.Text == "" {
		t.Fatalf("expected canned reply")
	}
	if len(result.Answer.Citations) != 0 {
		t.Fatalf("canned reply must not cite passages")
	}
	if f.retriever.called || f.clarifier.called {
		t.Fatalf("pipeline stages must not run for general chat")
	}
}

func TestHandleTurnLawyerNeededGetsReferral(t *testing.T) {
	f := newFixture(domain.IntentClassification{
		Intent:  domain.IntentLawyerNeeded,
		Domain:  domain.CategoryCriminal,
		Clarity: domain.ClarityClear,
		Urgency: domain.UrgencyHigh,
	})

	result, err := f.uc.HandleTurn(context.Background(), "conv-1", "I was arrested")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Answer == nil {
		t.Fatalf("expected referral reply")
	}
	if f.retriever.called {
		t.Fatalf("retrieval must not run for lawyer referral")
	}
}

func TestHandleTurnDocumentAnalysisHandsOff(t *testing.T) {
	f := newFixture(domain.IntentClassification{
		Intent:  domain.IntentDocumentAnalysis,
		Domain:  domain.CategoryCivil,
		Clarity: domain.ClarityClear,
		Urgency: domain.UrgencyLow,
	})

	result, err := f.uc.HandleTurn(context.Background(), "conv-1", "check my contract")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Answer == nil {
		t.Fatalf("expected handoff reply")
	}
	if f.retriever.called {
		t.Fatalf("retrieval must not run for document handoff")
	}
}

func TestHandleTurnEmptyMessageRejected(t *testing.T) {
	f := newFixture(domain.IntentClassification{})

	_, err := f.uc.HandleTurn(context.Background(), "conv-1", "   ")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(f.conversations.turns) != 0 {
		t.Fatalf("rejected message must not be logged")
	}
}

func TestHandleTurnGeneratesConversationID(t *testing.T) {
	f := newFixture(domain.IntentClassification{
		Intent:  domain.IntentGeneralChat,
		Domain:  domain.CategoryOther,
		Clarity: domain.ClarityClear,
		Urgency: domain.UrgencyLow,
	})

	result, err := f.uc.HandleTurn(context.Background(), "", "hi")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.ConversationID == "" {
		t.Fatalf("expected generated conversation id")
	}
}

func TestHandleTurnClassificationFailurePropagates(t *testing.T) {
	f := newFixture(domain.IntentClassification{})
	f.classifier.err = domain.WrapError(domain.ErrClassification, "classify intent", errors.New("malformed twice"))

	_, err := f.uc.HandleTurn(context.Background(), "conv-1", "question")
	if !domain.IsKind(err, domain.ErrClassification) {
		t.Fatalf("expected ErrClassification, got %v", err)
	}
	if len(f.audit.audits) != 1 || f.audit.audits[0].State != domain.StateFailed {
		t.Fatalf("expected failed audit record, got %+v", f.audit.audits)
	}
}

func TestHandleTurnRetrievalFailurePropagatesVerbatim(t *testing.T) {
	f := newFixture(domain.IntentClassification{
		Intent:  domain.IntentLegalQuery,
		Domain:  domain.CategoryLabor,
		Clarity: domain.ClarityClear,
		Urgency: domain.UrgencyMedium,
	})
	f.retriever.err = domain.WrapError(domain.ErrRetrievalUnavailable, "hybrid retrieve", errors.New("both signals down"))

	_, err := f.uc.HandleTurn(context.Background(), "conv-1", "question")
	if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected ErrRetrievalUnavailable, got %v", err)
	}
}

func TestHandleTurnSynthesisFailureIsNotMasked(t *testing.T) {
	f := newFixture(domain.IntentClassification{
		Intent:  domain.IntentLegalQuery,
		Domain:  domain.CategoryLabor,
		Clarity: domain.ClarityClear,
		Urgency: domain.UrgencyMedium,
	})
	f.synthesizer.answer = nil
	f.synthesizer.err = domain.WrapError(domain.ErrSynthesis, "synthesize answer", errors.New("model down"))

	_, err := f.uc.HandleTurn(context.Background(), "conv-1", "question")
	if !domain.IsKind(err, domain.ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}
}

func TestHandleTurnRecordsRetrievedAndVerifiedCounts(t *testing.T) {
	f := newFixture(domain.IntentClassification{
		Intent:  domain.IntentLegalQuery,
		Domain:  domain.CategoryCivil,
		Clarity: domain.ClarityClear,
		Urgency: domain.UrgencyLow,
	})
	f.retriever.candidates = []domain.Candidate{
		{Passage: domain.Passage{ID: "p1"}},
		{Passage: domain.Passage{ID: "p2"}},
		{Passage: domain.Passage{ID: "p3"}},
	}

	result, err := f.uc.HandleTurn(context.Background(), "conv-1", "question")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Retrieved != 3 {
		t.Fatalf("expected 3 retrieved, got %d", result.Retrieved)
	}
	if result.Verified != 1 {
		t.Fatalf("expected 1 verified, got %d", result.Verified)
	}
}
