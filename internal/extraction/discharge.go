package extraction

import (
	"regexp"
	"strings"
)

const (
	dischargeNoteTailLines    = 500
	dischargeSummaryTailLines = 400
)

// Discharge finding strings.
const (
	ErrMissingDischargeNote    = "❌ CRÍTICO: Falta registro de alta médica"
	ErrMissingDischargeSummary = "❌ CRÍTICO: No existe epicrisis (resumen de alta)"
)

var (
	dischargeNotePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)alta\s+m[eé]dica`),
		regexp.MustCompile(`(?i)registro\s+de\s+alta`),
		regexp.MustCompile(`(?i)egreso\s+(?:sanatorial|hospitalario)`),
		regexp.MustCompile(`(?i)discharge`),
		regexp.MustCompile(`(?i)egreso`),
	}
	dischargeSummaryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)epicr[ií]sis`),
		regexp.MustCompile(`(?i)resumen\s+de\s+alta`),
		regexp.MustCompile(`(?i)cierre\s+de\s+atenci[oó]n`),
		regexp.MustCompile(`(?i)indicaciones\s+y\s+evoluci[oó]n`),
	}
)

// CheckDischargeNote looks for discharge terminology in the closing part of
// the record. It is only meaningful for discharged patients.
func CheckDischargeNote(text string) []string {
	tail := strings.Join(lastLines(strings.Split(text, "\n"), dischargeNoteTailLines), "\n")
	if anyOf(tail, dischargeNotePatterns) {
		return []string{}
	}
	return []string{ErrMissingDischargeNote}
}

// CheckDischargeSummary looks for an epicrisis in the trailing non-empty lines.
func CheckDischargeSummary(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	for _, l := range lastLines(lines, dischargeSummaryTailLines) {
		if anyOf(l, dischargeSummaryPatterns) {
			return []string{}
		}
	}
	return []string{ErrMissingDischargeSummary}
}
