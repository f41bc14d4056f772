// internal/audit/scorer/scorer.go
package scorer

import (
	"fmt"
	"math"
	"strings"

	"visibility-audit/internal/models"
)

// Score weights are fixed design constants reflecting the relative
// importance of presence vs rank vs tone. They must sum to 100 for the
// 0-100 scale to hold.
const (
	mentionWeight   = 40.0
	positionWeight  = 35.0
	sentimentWeight = 25.0
)

var positionWeights = map[models.PositionBucket]float64{
	models.PositionTop1:          1.0,
	models.PositionTop3:          0.8,
	models.PositionTop5:          0.5,
	models.PositionMentionedLate: 0.25,
	models.PositionNotMentioned:  0,
}

var sentimentWeights = map[models.Sentiment]float64{
	models.SentimentPositive: 1.0,
	models.SentimentNeutral:  0.6,
	models.SentimentNegative: 0.2,
}

// scoreSubset computes the 0-100 visibility score for a result subset.
// Unclassified stub rows weigh zero but stay in the denominators.
func scoreSubset(results []models.PromptResult) int {
	if len(results) == 0 {
		return 0
	}

	total := float64(len(results))
	mentioned := 0
	positionSum := 0.0
	sentimentSum := 0.0
	for i := range results {
		r := &results[i]
		if r.PositionBucket != nil {
			positionSum += positionWeights[*r.PositionBucket]
		}
		if !r.Mentioned() {
			continue
		}
		mentioned++
		if r.Sentiment != nil {
			sentimentSum += sentimentWeights[*r.Sentiment]
		} else {
			sentimentSum += sentimentWeights[models.SentimentNeutral]
		}
	}

	avgSentiment := 0.0
	if mentioned > 0 {
		avgSentiment = sentimentSum / float64(mentioned)
	}

	score := mentionWeight*(float64(mentioned)/total) +
		positionWeight*(positionSum/total) +
		sentimentWeight*avgSentiment

	return int(math.Round(math.Min(100, math.Max(0, score))))
}

func mentionRate(results []models.PromptResult) float64 {
	if len(results) == 0 {
		return 0
	}
	mentioned := 0
	for i := range results {
		if results[i].Mentioned() {
			mentioned++
		}
	}
	return float64(mentioned) / float64(len(results))
}

// ComputeScores derives the full score object from a result set. It is a
// pure view over its input: recomputed on every read, never stored.
func ComputeScores(results []models.PromptResult) models.AuditScore {
	platformScores := make([]models.PlatformScore, 0, 3)
	for _, platform := range models.AllPlatforms() {
		var subset []models.PromptResult
		for i := range results {
			if results[i].Platform == platform {
				subset = append(subset, results[i])
			}
		}
		platformScores = append(platformScores, models.PlatformScore{
			Platform:    platform,
			Score:       scoreSubset(subset),
			MentionRate: mentionRate(subset),
			PromptCount: len(subset),
		})
	}

	overall := scoreSubset(results)

	var summary string
	switch {
	case overall >= 70:
		summary = "Strong AI visibility — your brand is consistently recommended across platforms."
	case overall >= 40:
		summary = "Moderate AI visibility — your brand appears in some queries but has significant gaps."
	default:
		summary = "Low AI visibility — your brand is rarely recommended by AI platforms. Immediate action recommended."
	}

	return models.AuditScore{
		Visibility:  overall,
		Platforms:   platformScores,
		MentionRate: mentionRate(results),
		Summary:     summary,
	}
}

const maxQuickWins = 3

// GenerateQuickWins derives up to three actionable recommendations from the
// result set. Rule order is the emission order and decides which entries
// survive the cap: platform misses (fixed platform order), then agency-query
// misses, then negative sentiment, then generic fillers.
func GenerateQuickWins(results []models.PromptResult, brandName, industry string) []string {
	wins := []string{}

	for _, platform := range models.AllPlatforms() {
		missed := 0
		for i := range results {
			if results[i].Platform == platform && !results[i].Mentioned() {
				missed++
			}
		}
		if missed >= 7 {
			label := platform.Label()
			wins = append(wins, fmt.Sprintf("Not appearing in %d/10 %s queries — add %s to %s's training context by publishing structured comparison content.", missed, label, brandName, label))
		}
	}

	agencyMisses := 0
	for i := range results {
		if strings.Contains(strings.ToLower(results[i].PromptText), "agenc") && !results[i].Mentioned() {
			agencyMisses++
		}
	}
	if agencyMisses > 0 {
		wins = append(wins, fmt.Sprintf("Missing from agency-specific queries — create dedicated landing pages targeting \"%s for agencies\" to improve AI citation chances.", industry))
	}

	negatives := 0
	for i := range results {
		if results[i].Sentiment != nil && *results[i].Sentiment == models.SentimentNegative {
			negatives++
		}
	}
	if negatives > 0 {
		wins = append(wins, fmt.Sprintf("Negative sentiment detected in %d result(s) — address common objections in your public content and review responses.", negatives))
	}

	if len(wins) < maxQuickWins {
		wins = append(wins, fmt.Sprintf("Publish a dedicated \"%s vs competitors\" comparison page targeting \"%s\" to increase AI recommendation frequency.", brandName, industry))
	}
	if len(wins) < maxQuickWins {
		wins = append(wins, fmt.Sprintf("Submit %s to G2, Capterra, and Trustpilot — AI platforms heavily cite these sources in %s recommendations.", brandName, industry))
	}

	if len(wins) > maxQuickWins {
		wins = wins[:maxQuickWins]
	}
	return wins
}
