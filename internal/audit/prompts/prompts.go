// internal/audit/prompts/prompts.go
package prompts

import (
	"fmt"
	"strings"
)

// PromptSpec is one evaluation question for a job. Index is the 1-based
// stable identity used downstream for grouping and free/locked partitioning.
type PromptSpec struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Templates is the fixed ordered question set. Order matters: the first
// three prompt indexes are the free tier of the report.
var Templates = []string{
	"Best {industry} software in 2026",
	"What is the best {industry} platform for SMBs?",
	"Top alternatives to {brandName} in {industry}",
	"Which {industry} tools are easiest to implement?",
	"Best value-for-money {industry} platforms",
	"Which {industry} platforms are best for agencies?",
	"Most trusted {industry} brands right now",
	"Best {industry} platform for fast-growing teams",
	"Which {industry} platforms have the best customer support?",
	"If I had to choose one {industry} platform, what should it be?",
}

// BuildPrompts expands the template set for a brand/industry pair. Inputs
// are assumed already validated by the caller. Deterministic, no I/O.
func BuildPrompts(brandName, industry string) []PromptSpec {
	specs := make([]PromptSpec, 0, len(Templates))
	for i, tmpl := range Templates {
		text := strings.ReplaceAll(tmpl, "{brandName}", brandName)
		text = strings.ReplaceAll(text, "{industry}", industry)
		specs = append(specs, PromptSpec{Index: i + 1, Text: text})
	}
	return specs
}

// SystemPrompt instructs providers to answer as strict JSON so the parser
// can classify the response without free-text heuristics.
const SystemPrompt = `You are evaluating software options for a buyer. Return concise ranked recommendations.
Format strictly as JSON with this schema:
{
  "recommendations": [
    {"name":"string","rank":1,"sentiment":"positive|neutral|negative","reason":"string"}
  ],
  "summary":"string"
}
Rules:
- Return 5 recommendations max.
- Use distinct company/product names.
- rank starts at 1 and increments.
- No markdown.`

// BuildUserPrompt renders the per-question user message for a provider call.
func BuildUserPrompt(brandName, industry, promptText string) string {
	return fmt.Sprintf("Brand to evaluate: %s\nIndustry/category: %s\nQuestion: %s\n\nReturn the ranked list for this question.", brandName, industry, promptText)
}
