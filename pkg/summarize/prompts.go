package summarize

import (
	"fmt"
	"strings"

	"github.com/LohithReddy3/ai-daily/internal/store"
)

const classifySystem = `You are an editor routing AI news to reader personas. Answer with JSON only.`

const classifyTemplate = `Classify this AI news story into the most relevant personas and categories.

Hierarchy:
%s

Rules:
1. Pick at most %d personas.
2. For each persona pick exactly one category from its list above.

Story:
%s

Return strict JSON:
{"classifications": [{"persona": "builders", "category": "Models"}]}`

const generateSystem = `You are an expert AI analyst writing for a daily briefing. Do not invent facts that are not in the input. Answer with JSON only.`

const generateTemplate = `Summarize the following news items for the %q persona under the %q category.

Input:
%s

%s

Focus only on the %s perspective and the %s context.`

var personaSchemas = map[store.Persona]string{
	store.PersonaBuilders: `Audience: developers and ML engineers. Return:
{
  "summary_short": "at most 40 words",
  "bullets": ["technical specs or architecture", "API or library changes", "performance numbers", "how to implement"],
  "actionable_next_step": "one concrete implementation step",
  "confidence": "low|medium|high"
}`,
	store.PersonaExecutors: `Audience: business and strategy decision makers. Return:
{
  "why_it_matters": "the strategic so-what",
  "summary_short": "at most 35 words",
  "bullets": ["market impact", "enterprise adoption", "competitive shift", "efficiency gains"],
  "confidence": "low|medium|high"
}`,
	store.PersonaExplorers: `Audience: readers interested in society, ethics and the future. Return:
{
  "summary_short": "at most 45 words",
  "bullets": ["long-term societal shift", "ethical considerations", "creative possibilities", "impact on work"],
  "open_questions": ["one or two future-looking questions"],
  "confidence": "low|medium|high"
}`,
	store.PersonaThoughtLeaders: `Audience: experts who want dense, high-signal analysis. Return:
{
  "summary_short": "at most 40 words, dense and insightful",
  "bullets": ["key arguments", "contrarian points", "mental models", "predictions"],
  "actionable_next_step": "one insight to apply",
  "confidence": "high"
}`,
}

func hierarchyText() string {
	var b strings.Builder
	for _, p := range Personas {
		fmt.Fprintf(&b, "- %s: %s\n", p, strings.Join(Hierarchy[p], ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func classifyPrompt(storyContext string, maxTargets int) string {
	return fmt.Sprintf(classifyTemplate, hierarchyText(), maxTargets, storyContext)
}

func generatePrompt(t Target, input string) string {
	return fmt.Sprintf(generateTemplate, t.Persona, t.Category, input, personaSchemas[t.Persona], t.Persona, t.Category)
}
