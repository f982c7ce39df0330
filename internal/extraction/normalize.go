package extraction

import (
	"regexp"
	"strings"
)

var (
	reBlanks      = regexp.MustCompile(`[ \t]+`)
	rePageFooter  = regexp.MustCompile(`(?im)^P[áa]gina +\d+ +de +\d+ *$`)
	rePrintHeader = regexp.MustCompile(`(?im)^Fecha +impresi[óo]n:.*$`)
)

// Normalize collapses whitespace, unifies line breaks and removes pagination
// and print-timestamp lines. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	text = collapse(text)
	text = rePageFooter.ReplaceAllString(text, "")
	text = rePrintHeader.ReplaceAllString(text, "")
	return text
}

// normalizeKeepPages is Normalize without the pagination strip. The studies
// extractor needs the "Página N de M" lines to know the current sheet.
func normalizeKeepPages(text string) string {
	return rePrintHeader.ReplaceAllString(collapse(text), "")
}

func collapse(text string) string {
	text = strings.ReplaceAll(text, "\f", " ")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(reBlanks.ReplaceAllString(l, " "))
	}
	return strings.Join(lines, "\n")
}
