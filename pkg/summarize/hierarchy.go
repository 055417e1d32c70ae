package summarize

import (
	"strings"

	"github.com/LohithReddy3/ai-daily/internal/store"
)

// Personas in presentation order.
var Personas = []store.Persona{
	store.PersonaBuilders,
	store.PersonaExecutors,
	store.PersonaExplorers,
	store.PersonaThoughtLeaders,
}

// Hierarchy is the closed persona to category vocabulary.
var Hierarchy = map[store.Persona][]string{
	store.PersonaBuilders:       {"Models", "RAG & Agents", "Papers", "Open Source"},
	store.PersonaExecutors:      {"Markets", "Enterprise", "Industry", "Policy", "Startups", "Strategy", "Compute"},
	store.PersonaExplorers:      {"AGI & Future", "Ethics", "Jobs & Society", "Demos & Creativity"},
	store.PersonaThoughtLeaders: {"Deep Dives", "Concepts", "Hot Takes"},
}

// Target is a persona/category pair a story is summarized for.
type Target struct {
	Persona  store.Persona `json:"persona"`
	Category string        `json:"category"`
}

// FallbackTarget is used when classification yields nothing usable.
var FallbackTarget = Target{Persona: store.PersonaBuilders, Category: "Models"}

// Canonical maps a loosely written pair onto the hierarchy. ok is false when
// the persona or category is unknown.
func Canonical(persona, category string) (Target, bool) {
	p := store.Persona(strings.ToLower(strings.TrimSpace(persona)))
	cats, found := Hierarchy[p]
	if !found {
		return Target{}, false
	}
	category = strings.TrimSpace(category)
	for _, c := range cats {
		if strings.EqualFold(c, category) {
			return Target{Persona: p, Category: c}, true
		}
	}
	return Target{}, false
}
