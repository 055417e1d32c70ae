package summarize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/LohithReddy3/ai-daily/internal/store"
	"github.com/LohithReddy3/ai-daily/pkg/genai"
)

// ErrMalformedResponse marks a reply that is not valid JSON or is missing
// required fields.
var ErrMalformedResponse = errors.New("malformed generative response")

type classificationReply struct {
	Classifications []struct {
		Persona  string `json:"persona"`
		Category string `json:"category"`
	} `json:"classifications"`
}

// ParseClassification extracts up to max distinct valid targets from a
// classification reply.
func ParseClassification(raw string, max int) ([]Target, error) {
	var reply classificationReply
	if err := json.Unmarshal([]byte(genai.ExtractJSON(raw)), &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	seen := make(map[Target]bool)
	var targets []Target
	for _, c := range reply.Classifications {
		t, ok := Canonical(c.Persona, c.Category)
		if !ok || seen[t] {
			continue
		}
		seen[t] = true
		targets = append(targets, t)
		if max > 0 && len(targets) == max {
			break
		}
	}
	return targets, nil
}

// personaSummary is implemented by each persona's reply schema.
type personaSummary interface {
	validate() error
	record() store.StorySummary
}

type common struct {
	SummaryShort string   `json:"summary_short"`
	Bullets      []string `json:"bullets"`
	Confidence   string   `json:"confidence"`
}

func (c common) validate() error {
	if strings.TrimSpace(c.SummaryShort) == "" {
		return fmt.Errorf("%w: summary_short is empty", ErrMalformedResponse)
	}
	if len(nonEmpty(c.Bullets)) == 0 {
		return fmt.Errorf("%w: bullets are empty", ErrMalformedResponse)
	}
	return nil
}

func (c common) base(defaultConfidence string) store.StorySummary {
	return store.StorySummary{
		SummaryShort: strings.TrimSpace(c.SummaryShort),
		Bullets:      nonEmpty(c.Bullets),
		KeyEntities:  []string{},
		Confidence:   NormalizeConfidence(c.Confidence, defaultConfidence),
	}
}

// BuilderSummary is the technical reader's schema.
type BuilderSummary struct {
	common
	ActionableNextStep string `json:"actionable_next_step"`
}

func (s *BuilderSummary) validate() error {
	if err := s.common.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(s.ActionableNextStep) == "" {
		return fmt.Errorf("%w: actionable_next_step is empty", ErrMalformedResponse)
	}
	return nil
}

func (s *BuilderSummary) record() store.StorySummary {
	r := s.base(store.ConfidenceLow)
	r.KeyEntities = []string{strings.TrimSpace(s.ActionableNextStep)}
	return r
}

// ExecutorSummary is the business reader's schema.
type ExecutorSummary struct {
	common
	WhyItMatters string `json:"why_it_matters"`
}

func (s *ExecutorSummary) validate() error {
	if err := s.common.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(s.WhyItMatters) == "" {
		return fmt.Errorf("%w: why_it_matters is empty", ErrMalformedResponse)
	}
	return nil
}

func (s *ExecutorSummary) record() store.StorySummary {
	r := s.base(store.ConfidenceLow)
	r.WhyItMatters = strings.TrimSpace(s.WhyItMatters)
	return r
}

// ExplorerSummary is the society and future reader's schema.
type ExplorerSummary struct {
	common
	OpenQuestions []string `json:"open_questions"`
}

func (s *ExplorerSummary) validate() error {
	if err := s.common.validate(); err != nil {
		return err
	}
	if len(nonEmpty(s.OpenQuestions)) == 0 {
		return fmt.Errorf("%w: open_questions are empty", ErrMalformedResponse)
	}
	return nil
}

func (s *ExplorerSummary) record() store.StorySummary {
	r := s.base(store.ConfidenceLow)
	r.KeyEntities = nonEmpty(s.OpenQuestions)
	return r
}

// ThoughtLeaderSummary is the expert reader's schema.
type ThoughtLeaderSummary struct {
	common
	ActionableNextStep string `json:"actionable_next_step"`
}

func (s *ThoughtLeaderSummary) record() store.StorySummary {
	r := s.base(store.ConfidenceHigh)
	if step := strings.TrimSpace(s.ActionableNextStep); step != "" {
		r.KeyEntities = []string{step}
	}
	return r
}

func newPersonaSummary(p store.Persona) (personaSummary, error) {
	switch p {
	case store.PersonaBuilders:
		return &BuilderSummary{}, nil
	case store.PersonaExecutors:
		return &ExecutorSummary{}, nil
	case store.PersonaExplorers:
		return &ExplorerSummary{}, nil
	case store.PersonaThoughtLeaders:
		return &ThoughtLeaderSummary{}, nil
	}
	return nil, fmt.Errorf("unknown persona %q", p)
}

// ParseSummary decodes and validates a generation reply for target.
func ParseSummary(raw string, target Target) (store.StorySummary, error) {
	ps, err := newPersonaSummary(target.Persona)
	if err != nil {
		return store.StorySummary{}, err
	}
	if err := json.Unmarshal([]byte(genai.ExtractJSON(raw)), ps); err != nil {
		return store.StorySummary{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := ps.validate(); err != nil {
		return store.StorySummary{}, err
	}

	rec := ps.record()
	rec.Persona = target.Persona
	rec.Category = target.Category
	return rec, nil
}

// NormalizeConfidence maps a model supplied confidence onto low, medium or
// high, returning def for anything unrecognized.
func NormalizeConfidence(c, def string) string {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case "low":
		return store.ConfidenceLow
	case "med", "medium":
		return store.ConfidenceMedium
	case "high":
		return store.ConfidenceHigh
	}
	return def
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
