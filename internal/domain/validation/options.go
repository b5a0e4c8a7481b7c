// Package validation implements the anti-cheat gate applied to submitted scores.
package validation

// Thresholds holds every tunable the validator uses.
type Thresholds struct {
	// MaxWPM is the hard ceiling above which a score is implausible. Zero disables the check.
	MaxWPM float64
	// MinKeystrokes is the fewest keystrokes that can back a non-zero speed.
	MinKeystrokes int
	// MinElapsedMS is the shortest first-to-last keystroke span that can back a non-zero speed.
	MinElapsedMS int64
	// WPMEpsilon is how far wpm may exceed rawWpm before it is rejected.
	WPMEpsilon float64
	// KeystrokeRatioTolerance bounds keystrokes/implied-chars in both directions.
	KeystrokeRatioTolerance float64
	// PromptOverrunTolerance bounds implied correct chars against the prompt length.
	PromptOverrunTolerance float64
	// MinImpliedChars is the sample size below which reconciliation is skipped.
	MinImpliedChars float64
	// CharsPerWord converts wpm to characters.
	CharsPerWord float64
}

// DefaultThresholds returns the shipped defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxWPM:                  350,
		MinKeystrokes:           10,
		MinElapsedMS:            2_000,
		WPMEpsilon:              0.5,
		KeystrokeRatioTolerance: 3.0,
		PromptOverrunTolerance:  1.5,
		MinImpliedChars:         20,
		CharsPerWord:            5,
	}
}

// Option applies a configuration option to the Validator.
type Option func(*Validator)

// WithThresholds replaces the thresholds with t as given. Start from
// DefaultThresholds to change a single field.
func WithThresholds(t Thresholds) Option {
	return func(v *Validator) {
		v.t = t
	}
}

// WithoutSpeedCeiling disables the MaxWPM check.
func WithoutSpeedCeiling() Option {
	return func(v *Validator) {
		v.t.MaxWPM = 0
	}
}
