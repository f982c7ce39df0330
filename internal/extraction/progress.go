package extraction

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	visitForwardWindow = 2000
	dayLookBehind      = 500
	dayLookAhead       = 1500
)

// Warning types for days without a note that do not count as errors.
const (
	WarnTypeDischargeDay = "Día de alta sin evolución"
	WarnTypeCurrentDay   = "Día en curso sin evolución"
)

var (
	reVisit = regexp.MustCompile(`(?i)visita[\s_]+(\d{1,2}/\d{1,2}/\d{2,4})(?:\s+\d{1,2}:\d{2})?`)

	dailyNotePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)evoluci[oó]n[\s_]+m[eé]dica[\s_]+diaria`),
		regexp.MustCompile(`(?i)evol\.?[\s_]+m[eé]dica[\s_]+diaria`),
		regexp.MustCompile(`(?i)evoluci[oó]n[\s_]+diaria`),
	}
	icuNotePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)evoluci[oó]n[\s_]+(?:en[\s_]+)?(?:uti|uci|uco)\b`),
		regexp.MustCompile(`(?i)evoluci[oó]n[\s_]+(?:en[\s_]+)?terapia[\s_]+intensiva`),
		regexp.MustCompile(`(?i)nota[\s_]+de[\s_]+evoluci[oó]n[\s_]+(?:uti|uci|uco)\b`),
		regexp.MustCompile(`(?i)evoluci[oó]n[\s_]+intensivista`),
	}
)

// ProgressAudit is the per-day outcome of the progress-note audit.
type ProgressAudit struct {
	Errors   []string
	Warnings []Warning
	Days     []DayCoverage
}

// progressPass carries the accumulators of one audit run.
type progressPass struct {
	text     string
	patterns []*regexp.Regexp
	first    int64
	last     int64
	covered  map[int64]bool
	emitted  map[int64]bool
}

// AuditProgressNotes classifies every calendar day of the period as covered,
// missing, or exempt. Admission day is always exempt; the closing day (the
// discharge, or today while admitted) only raises a warning.
func AuditProgressNotes(text string, period Period, intensiveCare bool) ProgressAudit {
	patterns := dailyNotePatterns
	if intensiveCare {
		patterns = append(append([]*regexp.Regexp{}, dailyNotePatterns...), icuNotePatterns...)
	}
	pp := &progressPass{
		text:     text,
		patterns: patterns,
		first:    dayIndex(period.Admission),
		last:     dayIndex(period.Reference),
		covered:  make(map[int64]bool),
		emitted:  make(map[int64]bool),
	}
	loc := period.Admission.Location()

	pp.scanVisits(loc)

	days := calendarDays(period.Admission, period.Reference)
	for _, d := range days {
		if !pp.covered[dayIndex(d)] {
			pp.scanDate(d)
		}
	}

	out := ProgressAudit{Errors: []string{}, Warnings: []Warning{}, Days: make([]DayCoverage, 0, len(days))}
	for _, d := range days {
		idx := dayIndex(d)
		ds := d.Format(DateLayout)
		row := DayCoverage{Date: ds}
		switch {
		case pp.covered[idx]:
			row.State = DayCovered
		case idx == pp.first:
			row.State = DayAdmissionExempt
		case idx == pp.last:
			row.State = DayDischargeWarning
			w := closingDayWarning(ds, period.Admitted)
			row.Description = w.Description
			if !pp.emitted[idx] {
				out.Warnings = append(out.Warnings, w)
			}
			pp.emitted[idx] = true
		default:
			row.State = DayCriticalMissing
			row.Description = fmt.Sprintf("❌ CRÍTICO: %s - Falta 'Evolución médica diaria'", ds)
			if !pp.emitted[idx] {
				out.Errors = append(out.Errors, row.Description)
			}
			pp.emitted[idx] = true
		}
		out.Days = append(out.Days, row)
	}
	return out
}

func closingDayWarning(date string, admitted bool) Warning {
	if admitted {
		return Warning{
			Type:        WarnTypeCurrentDay,
			Description: fmt.Sprintf("⚠️ ADVERTENCIA: %s - Día en curso, la evolución diaria puede estar pendiente", date),
			Date:        date,
		}
	}
	return Warning{
		Type:        WarnTypeDischargeDay,
		Description: fmt.Sprintf("⚠️ ADVERTENCIA: %s - Día de alta, usualmente no requiere evolución diaria", date),
		Date:        date,
	}
}

// scanVisits is the marker pass: every dated "visita" inside the period
// looks for a note phrase in the text that follows it.
func (pp *progressPass) scanVisits(loc *time.Location) {
	for _, m := range reVisit.FindAllStringSubmatchIndex(pp.text, -1) {
		t, ok := parseDate(pp.text[m[2]:m[3]], "", loc)
		if !ok {
			continue
		}
		idx := dayIndex(t)
		if idx < pp.first || idx > pp.last || pp.covered[idx] {
			continue
		}
		if anyOf(window(pp.text, m[0], m[0], 0, visitForwardWindow), pp.patterns) {
			pp.covered[idx] = true
		}
	}
}

// scanDate is the exhaustive pass: every occurrence of the day in any
// common spelling is tested against a wider neighborhood.
func (pp *progressPass) scanDate(d time.Time) {
	for _, v := range dateSpellings(d) {
		for from := 0; from < len(pp.text); {
			i := strings.Index(pp.text[from:], v)
			if i < 0 {
				break
			}
			start := from + i
			end := start + len(v)
			from = end
			if !standaloneDate(pp.text, start, end) {
				continue
			}
			if anyOf(window(pp.text, start, end, dayLookBehind, dayLookAhead), pp.patterns) {
				pp.covered[dayIndex(d)] = true
				return
			}
		}
	}
}

func dateSpellings(d time.Time) []string {
	day, month, year := d.Day(), int(d.Month()), d.Year()
	return dedupeStrings([]string{
		fmt.Sprintf("%02d/%02d/%d", day, month, year),
		fmt.Sprintf("%d/%d/%d", day, month, year),
		fmt.Sprintf("%02d/%d/%d", day, month, year),
		fmt.Sprintf("%d/%02d/%d", day, month, year),
		fmt.Sprintf("%02d/%02d/%02d", day, month, year%100),
		fmt.Sprintf("%d/%d/%02d", day, month, year%100),
	})
}

// standaloneDate rejects hits embedded in a longer number, such as
// "2/03/2024" inside "12/03/2024" or "01/03/20" inside "01/03/2024".
func standaloneDate(text string, start, end int) bool {
	isDigitOrSlash := func(b byte) bool { return (b >= '0' && b <= '9') || b == '/' }
	if start > 0 && isDigitOrSlash(text[start-1]) {
		return false
	}
	if end < len(text) && isDigitOrSlash(text[end]) {
		return false
	}
	return true
}

// calendarDays lists local calendar days from a to b inclusive.
func calendarDays(a, b time.Time) []time.Time {
	a = startOfDay(a)
	n := dayIndex(b) - dayIndex(a)
	if n < 0 {
		return []time.Time{a}
	}
	out := make([]time.Time, 0, n+1)
	for i := int64(0); i <= n; i++ {
		out = append(out, time.Date(a.Year(), a.Month(), a.Day()+int(i), 0, 0, 0, 0, a.Location()))
	}
	return out
}
