package capture

import (
	"fmt"
	"strings"
)

// Quality is the user-facing compression tier.
type Quality string

const (
	QualityHigh   Quality = "High"
	QualityMedium Quality = "Medium"
	QualityLow    Quality = "Low"
)

// Qualities lists the recognized tiers from best to worst.
var Qualities = []Quality{QualityHigh, QualityMedium, QualityLow}

// CRF returns the x264 constant rate factor for the tier. Lower is better.
// Unrecognized tiers map to the Low value.
func (q Quality) CRF() string {
	switch q {
	case QualityHigh:
		return "18"
	case QualityMedium:
		return "23"
	default:
		return "28"
	}
}

// Valid reports whether q is one of the recognized tiers.
func (q Quality) Valid() bool {
	switch q {
	case QualityHigh, QualityMedium, QualityLow:
		return true
	}
	return false
}

// ParseQuality matches s against the known tiers, ignoring case.
func ParseQuality(s string) (Quality, error) {
	for _, q := range Qualities {
		if strings.EqualFold(s, string(q)) {
			return q, nil
		}
	}
	return "", fmt.Errorf("unknown quality %q (want High, Medium or Low)", s)
}
