package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
)

// verifyGeneratorFake scripts one judgment per passage ID. Concurrent
// calls are expected.
type verifyGeneratorFake struct {
	mu        sync.Mutex
	relevant  map[string]bool
	failingID string
	calls     int
}

func (f *verifyGeneratorFake) Generate(context.Context, string, float64) (string, error) {
	return "", errors.New("unexpected Generate call")
}

func (f *verifyGeneratorFake) GenerateJSON(_ context.Context, prompt string, _ float64) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	for id, relevant := range f.relevant {
		if !strings.Contains(prompt, "passage "+id) {
			continue
		}
		if id == f.failingID {
			return "", errors.New("judgment failed")
		}
		if relevant {
			return `{"relevant": true, "reason": "addresses the question"}`, nil
		}
		return `{"relevant": false, "reason": "different subject"}`, nil
	}
	return "", errors.New("unknown passage in prompt")
}

func verifyCandidates(ids ...string) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Candidate{Passage: domain.Passage{ID: id, Text: "passage " + id}})
	}
	return out
}

func TestVerifyKeepsPreVerificationOrder(t *testing.T) {
	generator := &verifyGeneratorFake{relevant: map[string]bool{"a": true, "b": true, "c": true}}
	verifier := NewVerifier(generator, nil, 5)

	verified, err := verifier.Verify(context.Background(), "q", verifyCandidates("a", "b", "c"))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(verified) != 3 {
		t.Fatalf("expected 3 verified, got %d", len(verified))
	}
	for i, want := range []string{"a", "b", "c"} {
		if verified[i].Passage.ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, verified[i].Passage.ID)
		}
	}
}

func TestVerifyRejectsIndependently(t *testing.T) {
	generator := &verifyGeneratorFake{relevant: map[string]bool{"a": true, "b": false, "c": true}}
	verifier := NewVerifier(generator, nil, 5)

	verified, err := verifier.Verify(context.Background(), "q", verifyCandidates("a", "b", "c"))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(verified) != 2 {
		t.Fatalf("expected 2 verified, got %d", len(verified))
	}
	for _, v := range verified {
		if v.Passage.ID == "b" {
			t.Fatalf("rejected candidate leaked through")
		}
	}
}

func TestVerifyJudgmentFailureRejectsOnlyThatCandidate(t *testing.T) {
	generator := &verifyGeneratorFake{
		relevant:  map[string]bool{"a": true, "b": true, "c": true},
		failingID: "b",
	}
	verifier := NewVerifier(generator, nil, 5)

	verified, err := verifier.Verify(context.Background(), "q", verifyCandidates("a", "b", "c"))
	if err != nil {
		t.Fatalf("expected per-candidate failure to be non-fatal, got %v", err)
	}
	if len(verified) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(verified))
	}
}

func TestVerifyCapsCheckedCandidates(t *testing.T) {
	generator := &verifyGeneratorFake{relevant: map[string]bool{"a": true, "b": true, "c": true, "d": true}}
	verifier := NewVerifier(generator, nil, 2)

	verified, err := verifier.Verify(context.Background(), "q", verifyCandidates("a", "b", "c", "d"))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(verified) != 2 {
		t.Fatalf("expected cap at 2, got %d", len(verified))
	}
	if generator.calls != 2 {
		t.Fatalf("expected 2 judgments, got %d", generator.calls)
	}
}

func TestVerifyEmptyInput(t *testing.T) {
	verifier := NewVerifier(&verifyGeneratorFake{}, nil, 5)

	verified, err := verifier.Verify(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(verified) != 0 {
		t.Fatalf("expected no verified candidates, got %d", len(verified))
	}
}
