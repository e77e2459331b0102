package authenticity

import (
	"fmt"
	"regexp"

	"recroai/internal/config"
)

// Config holds the weights and thresholds of the detector. The defaults are
// a heuristic policy; deployments are expected to tune them.
type Config struct {
	// Threshold at or above which a profile is suspicious.
	Threshold float64
	// HighSeverityWeight is added per high-severity match.
	HighSeverityWeight float64
	// HighSeverityCap bounds the total contribution of high-severity matches.
	HighSeverityCap float64

	BoilerplateWeight    float64
	SuperlativeWeight    float64
	LengthMismatchWeight float64
	InvisibleCharWeight  float64
	MarkupWeight         float64
	VocabularyWeight     float64
	// VocabularyCap bounds the total contribution of injection vocabulary.
	VocabularyCap float64

	// BoilerplateMinHits and BoilerplateDensity (phrases per 100 words) must
	// both be reached before boilerplate counts as a signal.
	BoilerplateMinHits int
	BoilerplateDensity float64
	// SuperlativeMinHits superlatives with no figures anywhere in the profile.
	SuperlativeMinHits int
	// MinWordsPerClaimedYear of experience text before a long claimed career
	// looks inconsistent.
	MinWordsPerClaimedYear float64

	// MaxSignalLength truncates recorded signals, in runes.
	MaxSignalLength int

	// ExtraHighSeverityPatterns are additional case-insensitive regular
	// expressions treated like the built-in injection phrases.
	ExtraHighSeverityPatterns []string
}

// DefaultConfig returns the default detection policy.
func DefaultConfig() Config {
	return Config{
		Threshold:              0.5,
		HighSeverityWeight:     0.4,
		HighSeverityCap:        1.0,
		BoilerplateWeight:      0.15,
		SuperlativeWeight:      0.15,
		LengthMismatchWeight:   0.1,
		InvisibleCharWeight:    0.2,
		MarkupWeight:           0.1,
		VocabularyWeight:       0.1,
		VocabularyCap:          0.3,
		BoilerplateMinHits:     3,
		BoilerplateDensity:     2.0,
		SuperlativeMinHits:     3,
		MinWordsPerClaimedYear: 3,
		MaxSignalLength:        80,
	}
}

// FromSettings maps the authenticity section of the application config
func FromSettings(s config.AuthenticityConfig) Config {
	return Config{
		Threshold:                 s.Threshold,
		HighSeverityWeight:        s.HighSeverityWeight,
		HighSeverityCap:           s.HighSeverityCap,
		BoilerplateWeight:         s.BoilerplateWeight,
		SuperlativeWeight:         s.SuperlativeWeight,
		LengthMismatchWeight:      s.LengthMismatchWeight,
		InvisibleCharWeight:       s.InvisibleCharWeight,
		MarkupWeight:              s.MarkupWeight,
		VocabularyWeight:          s.VocabularyWeight,
		VocabularyCap:             s.VocabularyCap,
		BoilerplateMinHits:        s.BoilerplateMinHits,
		BoilerplateDensity:        s.BoilerplateDensity,
		SuperlativeMinHits:        s.SuperlativeMinHits,
		MinWordsPerClaimedYear:    s.MinWordsPerClaimedYear,
		MaxSignalLength:           s.MaxSignalLength,
		ExtraHighSeverityPatterns: s.ExtraPatterns,
	}
}

// Validate checks that weights and thresholds are usable and compiles the
// extra patterns.
func (c Config) Validate() ([]*regexp.Regexp, error) {
	if c.Threshold <= 0 || c.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be in (0, 1], got %g", c.Threshold)
	}
	weights := map[string]float64{
		"highSeverityWeight":   c.HighSeverityWeight,
		"highSeverityCap":      c.HighSeverityCap,
		"boilerplateWeight":    c.BoilerplateWeight,
		"superlativeWeight":    c.SuperlativeWeight,
		"lengthMismatchWeight": c.LengthMismatchWeight,
		"invisibleCharWeight":  c.InvisibleCharWeight,
		"markupWeight":         c.MarkupWeight,
		"vocabularyWeight":     c.VocabularyWeight,
		"vocabularyCap":        c.VocabularyCap,
	}
	for name, w := range weights {
		if w < 0 || w > 1 {
			return nil, fmt.Errorf("%s must be in [0, 1], got %g", name, w)
		}
	}
	if c.MaxSignalLength <= 0 {
		return nil, fmt.Errorf("maxSignalLength must be positive, got %d", c.MaxSignalLength)
	}

	extra := make([]*regexp.Regexp, 0, len(c.ExtraHighSeverityPatterns))
	for _, p := range c.ExtraHighSeverityPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		extra = append(extra, re)
	}
	return extra, nil
}
