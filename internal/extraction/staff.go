package extraction

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reLicense   = regexp.MustCompile(`(?i)\b(?:mp|mn|matr[ií]cula)[.:\s]*(\d{3,6})\b`)
	reUpperRun  = regexp.MustCompile(`[A-ZÁÉÍÓÚÑ][A-ZÁÉÍÓÚÑ ,.]+`)
	reSurgeonCx = regexp.MustCompile(`(?i)cirujan[oa]|cirug[ií]a|operaci[oó]n|quir[uú]rgic`)
	reResidCx   = regexp.MustCompile(`(?i)residente|resident|evoluci[oó]n`)
)

// nameSearchOrder visits the license line first, then moves outward within
// three lines above and two below.
var nameSearchOrder = []int{0, -1, 1, -2, 2, -3}

// ExtractStaff collects doctors identified by a license number and groups
// them by the role suggested by the surrounding lines.
func ExtractStaff(text string) Staff {
	lines := strings.Split(text, "\n")
	s := Staff{Residents: []Doctor{}, Surgeons: []Doctor{}, Others: []Doctor{}}
	for i, line := range lines {
		m := reLicense.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name, ok := nearestName(lines, i)
		if !ok {
			continue
		}
		d := Doctor{Name: name, License: m[1]}
		lo, hi := max(0, i-5), min(len(lines), i+5)
		ctx := strings.Join(lines[lo:hi], " ")
		switch {
		case reSurgeonCx.MatchString(ctx):
			s.Surgeons = append(s.Surgeons, d)
		case reResidCx.MatchString(ctx):
			s.Residents = append(s.Residents, d)
		default:
			s.Others = append(s.Others, d)
		}
	}
	return s
}

func nearestName(lines []string, i int) (string, bool) {
	for _, off := range nameSearchOrder {
		j := i + off
		if j < 0 || j >= len(lines) {
			continue
		}
		for _, run := range reUpperRun.FindAllString(lines[j], -1) {
			if utf8.RuneCountInString(strings.TrimSpace(run)) < 6 {
				continue
			}
			if name, ok := PersonName(run); ok && utf8.RuneCountInString(name) >= 6 {
				return name, true
			}
		}
	}
	return "", false
}
