package services

import (
	"fmt"

	"github.com/yourusername/draftforme-backend/internal/models"
)

// CalculateConfidence determines how far a profile built from gamesAnalyzed of
// the last window ranked games can be trusted.
func CalculateConfidence(gamesAnalyzed int, window int) models.Confidence {
	var level models.ConfidenceLevel
	var reliabilityScore int
	var reasoning string

	if gamesAnalyzed >= 15 {
		level = models.ConfidenceHigh
		reliabilityScore = 90
	} else if gamesAnalyzed >= 5 {
		level = models.ConfidenceMedium
		reliabilityScore = 60
	} else {
		level = models.ConfidenceLow
		reliabilityScore = 30
	}

	if window <= 0 || gamesAnalyzed >= window {
		reasoning = fmt.Sprintf("Based on %d recent ranked games", gamesAnalyzed)
	} else {
		reasoning = fmt.Sprintf("Based on %d of the last %d ranked games", gamesAnalyzed, window)
	}

	switch level {
	case models.ConfidenceHigh:
		reasoning += " - champion pool is well established"
	case models.ConfidenceMedium:
		reasoning += " - champion pool is indicative"
	case models.ConfidenceLow:
		reasoning += " - limited data, pool scores are unreliable"
	}

	return models.Confidence{
		Level:            level,
		SampleSize:       gamesAnalyzed,
		Reasoning:        reasoning,
		ReliabilityScore: reliabilityScore,
	}
}

// GenerateWarnings lists caveats a draft UI should show next to a profile.
func GenerateWarnings(p *models.Profile) []string {
	var warnings []string

	if p.Mock {
		warnings = append(warnings, "Match history unavailable - showing generated sample data")
		return warnings
	}

	if p.Confidence.Level == models.ConfidenceLow {
		warnings = append(warnings, fmt.Sprintf("Only %d ranked games found - player scores are less reliable", p.GamesAnalyzed))
	}

	qualifying := 0
	for _, pref := range p.MostPlayed {
		if pref.Games >= MinPoolGames {
			qualifying++
		}
	}
	if p.GamesAnalyzed > 0 && qualifying == 0 {
		warnings = append(warnings, fmt.Sprintf("No champion has %d or more games - recommendations will lean on the meta", MinPoolGames))
	}

	// One champion dominating the window hides how the player does elsewhere.
	if len(p.MostPlayed) > 0 && p.GamesAnalyzed >= 10 {
		share := float64(p.MostPlayed[0].Games) / float64(p.GamesAnalyzed)
		if share >= 0.8 {
			warnings = append(warnings, fmt.Sprintf("%s accounts for %.0f%% of recent games", p.MostPlayed[0].Champion, share*100))
		}
	}

	return warnings
}
