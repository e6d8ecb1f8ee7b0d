package chunking

import (
	"fmt"
	"strings"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
)

// Splitter breaks over-long statute articles into indexable passages.
// Sizes are in runes, not bytes; source texts are mostly Cyrillic.
type Splitter struct {
	MaxRunes int
	Overlap  int
}

func NewSplitter(maxRunes, overlap int) *Splitter {
	if maxRunes <= 0 {
		maxRunes = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxRunes {
		overlap = maxRunes / 4
	}
	return &Splitter{
		MaxRunes: maxRunes,
		Overlap:  overlap,
	}
}

// SplitPassage returns the passage unchanged when it fits, otherwise a
// sequence of derived passages sharing its article and metadata. Derived
// IDs append a part suffix so citations stay resolvable.
func (s *Splitter) SplitPassage(passage domain.Passage) []domain.Passage {
	chunks := s.split(passage.Text)
	if len(chunks) <= 1 {
		return []domain.Passage{passage}
	}

	out := make([]domain.Passage, 0, len(chunks))
	for i, chunk := range chunks {
		part := passage
		part.ID = fmt.Sprintf("%s#%d", passage.ID, i+1)
		part.Text = chunk
		out = append(out, part)
	}
	return out
}

func (s *Splitter) split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.MaxRunes {
		return []string{text}
	}

	step := s.MaxRunes - s.Overlap
	if step <= 0 {
		step = s.MaxRunes
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.MaxRunes
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
