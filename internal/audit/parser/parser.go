// internal/audit/parser/parser.go
package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	"visibility-audit/internal/models"
)

// ParsedResult is the structured classification of one raw provider
// response. The parser is total: every input, however malformed, maps to a
// well-formed ParsedResult.
type ParsedResult struct {
	BrandMentioned bool                  `json:"brand_mentioned"`
	PositionBucket models.PositionBucket `json:"position_bucket"`
	Sentiment      models.Sentiment      `json:"sentiment"`
	Competitors    []string              `json:"competitors"`
	Confidence     float64               `json:"confidence"`
}

// llmResponse is the JSON shape providers are instructed to return.
type llmResponse struct {
	Recommendations []llmRecommendation `json:"recommendations"`
	Summary         string              `json:"summary"`
}

type llmRecommendation struct {
	Name      string  `json:"name"`
	Rank      float64 `json:"rank"`
	Sentiment string  `json:"sentiment"`
	Reason    string  `json:"reason"`
}

// matchedConfidence is fixed regardless of evidence strength; match quality
// does not vary it.
const matchedConfidence = 0.85

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// competitor names are HTML-escaped before rendering in the report UI
var sanitizer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

const competitorMaxLen = 500

// normalizeName lowercases and strips every non-alphanumeric character so
// that "Acme, Inc." and "acme.io" compare against the same base form.
func normalizeName(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}

// brandMatches applies the loose alias check: equal normalized names, or one
// containing the other. Tolerates suffixes like "Inc" and ".io" at the known
// cost of false positives for short generic brand names.
func brandMatches(candidate, brand string) bool {
	c := normalizeName(candidate)
	b := normalizeName(brand)
	return c == b || strings.Contains(c, b) || strings.Contains(b, c)
}

// brandMatchesStrict requires the normalized brand to equal the candidate's
// full normalized name or one of its word tokens. Opt-in via
// audit.strict_brand_match for brands where substring matching is too loose.
func brandMatchesStrict(candidate, brand string) bool {
	b := normalizeName(brand)
	if b == "" {
		return false
	}
	if normalizeName(candidate) == b {
		return true
	}
	for _, tok := range strings.FieldsFunc(strings.ToLower(candidate), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if tok == b {
			return true
		}
	}
	return false
}

// SanitizeText escapes markup-unsafe characters in LLM-supplied text and
// hard-caps its length.
func SanitizeText(s string) string {
	escaped := sanitizer.Replace(s)
	if runes := []rune(escaped); len(runes) > competitorMaxLen {
		return string(runes[:competitorMaxLen])
	}
	return escaped
}

func fallback() ParsedResult {
	return ParsedResult{
		BrandMentioned: false,
		PositionBucket: models.PositionNotMentioned,
		Sentiment:      models.SentimentNeutral,
		Competitors:    []string{},
		Confidence:     0,
	}
}

// ParseProviderResponse classifies one raw provider text blob using the
// default loose brand matching.
func ParseProviderResponse(raw, brandName string) ParsedResult {
	return Parse(raw, brandName, Options{})
}

// Options tunes parsing behavior.
type Options struct {
	// StrictBrandMatch replaces the loose substring alias check with a
	// token-boundary match.
	StrictBrandMatch bool
}

// Parse classifies one raw provider text blob against a brand name. It never
// fails: malformed input silently degrades to the fallback shape.
func Parse(raw, brandName string, opts Options) ParsedResult {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var resp llmResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return fallback()
	}
	if resp.Recommendations == nil {
		return fallback()
	}

	matches := brandMatches
	if opts.StrictBrandMatch {
		matches = brandMatchesStrict
	}

	var brandRec *llmRecommendation
	competitors := []string{}
	for i := range resp.Recommendations {
		rec := &resp.Recommendations[i]
		if matches(rec.Name, brandName) {
			// first match in list order wins
			if brandRec == nil {
				brandRec = rec
			}
			continue
		}
		competitors = append(competitors, SanitizeText(rec.Name))
	}

	if brandRec == nil {
		result := fallback()
		result.Competitors = competitors
		return result
	}

	var bucket models.PositionBucket
	switch rank := brandRec.Rank; {
	case rank == 1:
		bucket = models.PositionTop1
	case rank <= 3:
		bucket = models.PositionTop3
	case rank <= 5:
		bucket = models.PositionTop5
	default:
		bucket = models.PositionMentionedLate
	}

	sentiment := models.SentimentNeutral
	switch strings.ToLower(brandRec.Sentiment) {
	case "positive":
		sentiment = models.SentimentPositive
	case "negative":
		sentiment = models.SentimentNegative
	}

	return ParsedResult{
		BrandMentioned: true,
		PositionBucket: bucket,
		Sentiment:      sentiment,
		Competitors:    competitors,
		Confidence:     matchedConfidence,
	}
}
