package oracle

import (
	"strings"
)

// Verdict values
const (
	VerdictYes     = "YES"
	VerdictNo      = "NO"
	VerdictUnclear = "UNCLEAR"
)

// Confidence values
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// Verdict is the parsed oracle answer
type Verdict struct {
	Verdict    string `json:"verdict"`
	Confidence string `json:"confidence"`
	ActualDate string `json:"actual_date,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// ParseVerdict reads "LABEL: value" lines from a model answer. Labels are
// case-insensitive and may carry markdown emphasis or list markers. Missing
// or unrecognised values fall back to UNCLEAR / LOW.
func ParseVerdict(text string) Verdict {
	v := Verdict{Verdict: VerdictUnclear, Confidence: ConfidenceLow}

	for _, line := range strings.Split(text, "\n") {
		label, value, ok := splitLabel(line)
		if !ok {
			continue
		}
		switch label {
		case "VERDICT":
			switch word := firstWord(value); word {
			case VerdictYes, VerdictNo, VerdictUnclear:
				v.Verdict = word
			}
		case "CONFIDENCE":
			switch word := firstWord(value); word {
			case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
				v.Confidence = word
			}
		case "ACTUAL_DATE", "ACTUAL DATE":
			if !isEmptyDate(value) {
				v.ActualDate = value
			}
		case "REASON":
			v.Reason = value
		}
	}
	return v
}

// ParseAnswer reads a one-word YES/NO/UNCLEAR answer
func ParseAnswer(text string) string {
	switch word := firstWord(text); word {
	case VerdictYes, VerdictNo:
		return word
	}
	return VerdictUnclear
}

func splitLabel(line string) (label, value string, ok bool) {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-*# ")
	label, value, ok = strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	label = strings.ToUpper(strings.Trim(strings.TrimSpace(label), "*_ "))
	value = strings.TrimSpace(strings.Trim(strings.TrimSpace(value), "*_"))
	return label, value, true
}

func firstWord(s string) string {
	fields := strings.Fields(strings.ToUpper(s))
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], ".,;:!*_\"'")
}

func isEmptyDate(value string) bool {
	switch strings.ToLower(strings.Trim(value, ". ")) {
	case "", "n/a", "na", "none", "unknown", "-":
		return true
	}
	return false
}
