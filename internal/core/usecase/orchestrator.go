package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/ports"
)

// Consumer-side contracts for the pipeline stages, so each stage can be
// swapped or faked independently.
type intentClassifier interface {
	Classify(ctx context.Context, text string, history []domain.Turn) (domain.IntentClassification, error)
}

type clarifier interface {
	Clarify(ctx context.Context, text string, category domain.LawCategory) (*domain.ClarificationRequest, error)
}

type retriever interface {
	Retrieve(ctx context.Context, query string, topK int, filter domain.SearchFilter) ([]domain.Candidate, error)
}

type candidateReranker interface {
	Rerank(query string, candidates []domain.Candidate) []domain.Candidate
}

type relevanceVerifier interface {
	Verify(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.VerifiedCandidate, error)
}

type answerSynthesizer interface {
	Synthesize(ctx context.Context, query string, category domain.LawCategory, verified []domain.VerifiedCandidate) (*domain.Answer, error)
}

type AssistantOptions struct {
	TopK         int
	HistoryTurns int
}

// AssistantUseCase owns the control-flow state machine of one turn:
// START -> CLASSIFYING -> {CLARIFYING | RETRIEVING -> VERIFYING ->
// SYNTHESIZING} -> DONE, with FAILED reachable from any state. The
// orchestrator never retries a whole state; components handle their own
// bounded sub-call retries.
type AssistantUseCase struct {
	classifier    intentClassifier
	clarifier     clarifier
	retriever     retriever
	reranker      candidateReranker
	verifier      relevanceVerifier
	synthesizer   answerSynthesizer
	conversations ports.ConversationStore
	audit         ports.AuditTrail
	logger        *slog.Logger
	opts          AssistantOptions
}

func NewAssistantUseCase(
	classifier intentClassifier,
	clarifier clarifier,
	retriever retriever,
	reranker candidateReranker,
	verifier relevanceVerifier,
	synthesizer answerSynthesizer,
	conversations ports.ConversationStore,
	audit ports.AuditTrail,
	logger *slog.Logger,
	opts AssistantOptions,
) *AssistantUseCase {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AssistantUseCase{
		classifier:    classifier,
		clarifier:     clarifier,
		retriever:     retriever,
		reranker:      reranker,
		verifier:      verifier,
		synthesizer:   synthesizer,
		conversations: conversations,
		audit:         audit,
		logger:        logger,
		opts:          opts,
	}
}

const (
	generalChatReply = "I can help with questions about legislation: fines, contracts, employment, taxes and similar matters. What legal question can I look into for you?"
	lawyerReply      = "This situation needs a qualified lawyer rather than a reference answer. I recommend contacting a licensed attorney or your local legal aid service; bring every document you have about the case."
	documentReply    = "Document review is handled separately from questions about legislation. Please use the document upload flow, and I will analyze the file from there."
)

func (uc *AssistantUseCase) HandleTurn(
	ctx context.Context,
	conversationID, userText string,
) (*domain.TurnResult, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "handle turn", fmt.Errorf("empty user message"))
	}
	if strings.TrimSpace(conversationID) == "" {
		conversationID = uuid.NewString()
	}

	if _, err := uc.conversations.EnsureConversation(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("ensure conversation: %w", err)
	}
	history, err := uc.conversations.ListRecentTurns(ctx, conversationID, uc.opts.HistoryTurns)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	seq, err := uc.conversations.NextSeq(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("next turn seq: %w", err)
	}
	if err := uc.appendTurn(ctx, conversationID, domain.RoleUser, userText, seq); err != nil {
		return nil, err
	}

	result := &domain.TurnResult{ConversationID: conversationID, State: domain.StateClassifying}

	cls, err := uc.classifier.Classify(ctx, userText, history)
	if err != nil {
		return nil, uc.fail(ctx, result, seq, err)
	}
	result.Intent = cls.Intent
	result.Domain = cls.Domain

	switch {
	case cls.Intent == domain.IntentGeneralChat:
		return uc.finishCanned(ctx, result, seq, generalChatReply)
	case cls.Intent == domain.IntentLawyerNeeded:
		return uc.finishCanned(ctx, result, seq, lawyerReply)
	case cls.Intent == domain.IntentDocumentAnalysis && cls.Clarity == domain.ClarityClear:
		// Upload handling lives outside this pipeline; the turn ends with
		// a handoff message.
		return uc.finishCanned(ctx, result, seq, documentReply)
	case cls.Clarity == domain.ClarityNeedsClarification:
		return uc.clarifyTurn(ctx, result, seq, userText, cls.Domain)
	}

	result.State = domain.StateRetrieving
	filter := domain.SearchFilter{}
	if cls.Domain != domain.CategoryOther {
		filter.Category = cls.Domain
	}
	candidates, err := uc.retriever.Retrieve(ctx, userText, uc.opts.TopK, filter)
	if err != nil {
		return nil, uc.fail(ctx, result, seq, err)
	}
	result.Retrieved = len(candidates)
	candidates = uc.reranker.Rerank(userText, candidates)

	result.State = domain.StateVerifying
	verified, err := uc.verifier.Verify(ctx, userText, candidates)
	if err != nil {
		return nil, uc.fail(ctx, result, seq, err)
	}
	result.Verified = len(verified)

	result.State = domain.StateSynthesizing
	answer, err := uc.synthesizer.Synthesize(ctx, userText, cls.Domain, verified)
	if err != nil {
		return nil, uc.fail(ctx, result, seq, err)
	}

	if err := uc.appendTurn(ctx, conversationID, domain.RoleAssistant, answer.Text, seq); err != nil {
		return nil, err
	}
	result.State = domain.StateDone
	result.Answer = answer
	uc.publishAudit(ctx, result, seq, answer.Confidence)
	return result, nil
}

// clarifyTurn ends the turn with the questions themselves; the next user
// message re-enters classification with the accumulated context.
func (uc *AssistantUseCase) clarifyTurn(
	ctx context.Context,
	result *domain.TurnResult,
	seq int,
	userText string,
	category domain.LawCategory,
) (*domain.TurnResult, error) {
	result.State = domain.StateClarifying
	request, err := uc.clarifier.Clarify(ctx, userText, category)
	if err != nil {
		return nil, uc.fail(ctx, result, seq, err)
	}

	reply := strings.Join(request.Questions, "\n")
	if err := uc.appendTurn(ctx, result.ConversationID, domain.RoleAssistant, reply, seq); err != nil {
		return nil, err
	}
	result.State = domain.StateDone
	result.Clarification = request
	uc.publishAudit(ctx, result, seq, domain.ConfidenceNone)
	return result, nil
}

func (uc *AssistantUseCase) finishCanned(
	ctx context.Context,
	result *domain.TurnResult,
	seq int,
	reply string,
) (*domain.TurnResult, error) {
	if err := uc.appendTurn(ctx, result.ConversationID, domain.RoleAssistant, reply, seq); err != nil {
		return nil, err
	}
	result.State = domain.StateDone
	result.Answer = &domain.Answer{
		Text:       reply,
		Citations:  []domain.Citation{},
		Confidence: domain.ConfidenceNone,
	}
	uc.publishAudit(ctx, result, seq, domain.ConfidenceNone)
	return result, nil
}

// fail marks the turn terminal and surfaces the component error verbatim;
// it is never masked as a low-confidence answer.
func (uc *AssistantUseCase) fail(ctx context.Context, result *domain.TurnResult, seq int, err error) error {
	uc.logger.Error("turn failed", "conversation_id", result.ConversationID, "state", result.State, "error", err)
	result.State = domain.StateFailed
	uc.publishAudit(ctx, result, seq, domain.ConfidenceNone)
	return err
}

func (uc *AssistantUseCase) appendTurn(ctx context.Context, conversationID, role, content string, seq int) error {
	return uc.conversations.AppendTurn(ctx, domain.Turn{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Seq:            seq,
		CreatedAt:      time.Now().UTC(),
	})
}

func (uc *AssistantUseCase) publishAudit(ctx context.Context, result *domain.TurnResult, seq int, confidence domain.Confidence) {
	if uc.audit == nil {
		return
	}
	audit := domain.TurnAudit{
		ConversationID: result.ConversationID,
		Seq:            seq,
		State:          result.State,
		Intent:         result.Intent,
		Domain:         result.Domain,
		Confidence:     confidence,
		Retrieved:      result.Retrieved,
		Verified:       result.Verified,
		CreatedAt:      time.Now().UTC(),
	}
	if err := uc.audit.PublishTurnAudit(ctx, audit); err != nil {
		uc.logger.Warn("turn audit publish failed", "conversation_id", result.ConversationID, "error", err)
	}
}
