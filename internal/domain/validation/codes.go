package validation

import "strconv"

// Code identifies a rejection reason. Values are stable: clients and dashboards key on them.
type Code int

// Rejection codes.
const (
	CodeOK                     Code = 0
	CodeNegativeValue          Code = 1
	CodeAccuracyOutOfRange     Code = 2
	CodeWPMExceedsRaw          Code = 3
	CodeNoWords                Code = 4
	CodeKeystrokeMismatch      Code = 5
	CodePromptOverrun          Code = 6
	CodeNonMonotonicKeystrokes Code = 7
	CodeImplausibleSpeed       Code = 8
	CodeNonFinite              Code = 9
	CodeInsufficientSample     Code = 10
)

var codeTags = map[Code]string{
	CodeOK:                     "ok",
	CodeNegativeValue:          "negative_value",
	CodeAccuracyOutOfRange:     "accuracy_out_of_range",
	CodeWPMExceedsRaw:          "wpm_exceeds_raw",
	CodeNoWords:                "no_words",
	CodeKeystrokeMismatch:      "keystroke_mismatch",
	CodePromptOverrun:          "prompt_overrun",
	CodeNonMonotonicKeystrokes: "non_monotonic_keystrokes",
	CodeImplausibleSpeed:       "implausible_speed",
	CodeNonFinite:              "non_finite",
	CodeInsufficientSample:     "insufficient_sample",
}

// String returns the code's stable tag.
func (c Code) String() string {
	if tag, ok := codeTags[c]; ok {
		return tag
	}
	return "code_" + strconv.Itoa(int(c))
}
