// Package record defines the scored-answer entity produced by a run.
//
// A Record's text is fixed when it is created. Its score is written once by
// the grading step; until then the record is not eligible for comparison or
// selection. Eligibility is tracked with an explicit flag, so a legitimate
// score of zero (for example an empty answer) is still a graded record.
package record

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Provenance keys and agent tags.
const (
	KeyAgent = "agent"

	AgentBase  = "base"
	AgentFinal = "final"

	altPrefix = "alt_"
)

var (
	// ErrNotScored indicates a record was compared or selected before grading.
	ErrNotScored = errors.New("record has not been scored")

	// ErrAlreadyScored indicates a second write to a record's score.
	ErrAlreadyScored = errors.New("record has already been scored")

	// ErrInvalidScore indicates a score outside [0,100] or NaN.
	ErrInvalidScore = errors.New("score must be within [0,100]")
)

// Record is a generated answer together with its score and provenance.
//
// Record is safe for concurrent use; scoring tasks for different records run
// in parallel and readers may observe a record while it is being graded.
type Record struct {
	text       string
	provenance map[string]string

	mu     sync.RWMutex
	score  float64
	scored bool
}

// New creates an unscored record with the given agent tag.
func New(text, agent string) *Record {
	return &Record{
		text:       text,
		provenance: map[string]string{KeyAgent: agent},
	}
}

// Base creates the unscored baseline record.
func Base(text string) *Record {
	return New(text, AgentBase)
}

// Alternative creates an unscored alternative record tagged alt_<index>.
func Alternative(text string, index int) *Record {
	return New(text, AltAgent(index))
}

// AltAgent renders the provenance tag of the index-th alternative of a round.
func AltAgent(index int) string {
	return altPrefix + strconv.Itoa(index)
}

// AltIndex parses an alt_<index> tag. ok is false for other tags.
func AltIndex(agent string) (index int, ok bool) {
	if !strings.HasPrefix(agent, altPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(agent, altPrefix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Text returns the answer text.
func (r *Record) Text() string {
	return r.text
}

// Agent returns the provenance agent tag.
func (r *Record) Agent() string {
	return r.provenance[KeyAgent]
}

// Provenance returns a copy of the provenance mapping.
func (r *Record) Provenance() map[string]string {
	out := make(map[string]string, len(r.provenance))
	for k, v := range r.provenance {
		out[k] = v
	}
	return out
}

// Score returns the score and whether the record has been graded.
func (r *Record) Score() (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.score, r.scored
}

// Scored reports whether the record has been graded.
func (r *Record) Scored() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scored
}

// MustScore returns the score, or ErrNotScored before grading.
func (r *Record) MustScore() (float64, error) {
	score, ok := r.Score()
	if !ok {
		return 0, fmt.Errorf("%w: agent %s", ErrNotScored, r.Agent())
	}
	return score, nil
}

// SetScore records the grade. It may be called exactly once.
func (r *Record) SetScore(score float64) error {
	if score != score || score < 0 || score > 100 {
		return fmt.Errorf("%w: got %v", ErrInvalidScore, score)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scored {
		return fmt.Errorf("%w: agent %s", ErrAlreadyScored, r.Agent())
	}
	r.score = score
	r.scored = true
	return nil
}

// String renders the record for debugging without the full text.
func (r *Record) String() string {
	score, ok := r.Score()
	if !ok {
		return fmt.Sprintf("%s(unscored, %d chars)", r.Agent(), len(r.text))
	}
	return fmt.Sprintf("%s(%.2f, %d chars)", r.Agent(), score, len(r.text))
}
