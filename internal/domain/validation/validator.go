package validation

import (
	"fmt"
	"math"

	"github.com/okian/wpmrank/internal/domain/model"
)

const msPerMinute = 60_000.0

// Candidate is the part of a submission the validator looks at.
type Candidate struct {
	WPM        float64
	RawWPM     float64
	Accuracy   float64
	Keystrokes []model.Keystroke
	Words      []string
}

// Result is the validator's verdict. Warnings are borderline observations on a valid result.
type Result struct {
	Valid    bool
	Code     Code
	Reason   string
	Warnings []string
}

// Validator rejects only clear, explainable violations; anything ambiguous passes
// with a warning for the caller to log. It is safe for concurrent use.
type Validator struct {
	t Thresholds
}

// New creates a Validator with default thresholds and the given options.
func New(opts ...Option) *Validator {
	v := &Validator{t: DefaultThresholds()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Thresholds returns the effective thresholds.
func (v *Validator) Thresholds() Thresholds {
	return v.t
}

func reject(code Code, format string, args ...any) Result {
	return Result{Valid: false, Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks c. It performs no I/O and has no side effects.
func (v *Validator) Validate(c Candidate) Result {
	if r, bad := v.structural(c); bad {
		return r
	}

	res := Result{Valid: true, Code: CodeOK}

	// Nothing typed at speed zero has nothing to reconcile.
	if c.WPM == 0 && c.RawWPM == 0 {
		return res
	}
	if len(c.Keystrokes) == 0 {
		return reject(CodeKeystrokeMismatch, "raw speed %.2f reported with no keystrokes", c.RawWPM)
	}
	if len(c.Keystrokes) < v.t.MinKeystrokes {
		return reject(CodeInsufficientSample,
			"%d keystrokes cannot back a non-zero speed (need %d)", len(c.Keystrokes), v.t.MinKeystrokes)
	}

	elapsedMs := c.Keystrokes[len(c.Keystrokes)-1].Timestamp - c.Keystrokes[0].Timestamp
	if elapsedMs <= 0 || elapsedMs < v.t.MinElapsedMS {
		return reject(CodeInsufficientSample,
			"keystrokes span %dms, need at least %dms for a non-zero speed", elapsedMs, v.t.MinElapsedMS)
	}
	minutes := float64(elapsedMs) / msPerMinute

	impliedRaw := c.RawWPM * v.t.CharsPerWord * minutes
	if impliedRaw < v.t.MinImpliedChars {
		res.Warnings = append(res.Warnings, fmt.Sprintf("sample too small to reconcile (%.1f chars)", impliedRaw))
	} else {
		ratio := float64(len(c.Keystrokes)) / impliedRaw
		if ratio > v.t.KeystrokeRatioTolerance || ratio < 1/v.t.KeystrokeRatioTolerance {
			return reject(CodeKeystrokeMismatch,
				"%d keystrokes over %dms do not match raw speed %.2f (%.1f chars implied)",
				len(c.Keystrokes), elapsedMs, c.RawWPM, impliedRaw)
		}
	}

	impliedCorrect := c.WPM * v.t.CharsPerWord * minutes
	prompt := float64(promptChars(c.Words))
	if impliedCorrect >= v.t.MinImpliedChars && impliedCorrect > prompt*v.t.PromptOverrunTolerance {
		return reject(CodePromptOverrun,
			"%.1f scored chars exceed a %d-char prompt", impliedCorrect, int(prompt))
	}

	return res
}

// structural applies checks that need no timing information.
func (v *Validator) structural(c Candidate) (Result, bool) {
	for _, x := range []float64{c.WPM, c.RawWPM, c.Accuracy} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return reject(CodeNonFinite, "non-finite value"), true
		}
	}
	switch {
	case c.WPM < 0 || c.RawWPM < 0 || c.Accuracy < 0:
		return reject(CodeNegativeValue, "negative wpm, rawWpm or accuracy"), true
	case c.Accuracy > 100:
		return reject(CodeAccuracyOutOfRange, "accuracy %.2f outside [0,100]", c.Accuracy), true
	case c.WPM > c.RawWPM+v.t.WPMEpsilon:
		return reject(CodeWPMExceedsRaw, "wpm %.2f exceeds rawWpm %.2f", c.WPM, c.RawWPM), true
	case v.t.MaxWPM > 0 && c.WPM > v.t.MaxWPM:
		return reject(CodeImplausibleSpeed, "wpm %.2f above ceiling %.0f", c.WPM, v.t.MaxWPM), true
	case len(c.Words) == 0 && c.WPM > 0:
		return reject(CodeNoWords, "wpm %.2f with an empty prompt", c.WPM), true
	}
	for i := 1; i < len(c.Keystrokes); i++ {
		if c.Keystrokes[i].Timestamp < c.Keystrokes[i-1].Timestamp {
			return reject(CodeNonMonotonicKeystrokes, "keystroke %d goes back in time", i), true
		}
	}
	return Result{}, false
}

// promptChars counts the characters of words joined by single spaces.
func promptChars(words []string) int {
	if len(words) == 0 {
		return 0
	}
	n := len(words) - 1
	for _, w := range words {
		n += len([]rune(w))
	}
	return n
}
