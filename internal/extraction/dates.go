package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the rendering used in every finding and table.
const DateLayout = "02/01/2006"

const errDischargeBeforeAdmission = "Fecha de alta anterior a la fecha de ingreso"

var (
	reStampDateTime = regexp.MustCompile(`(?i)fecha[\s_]*(?:de[\s_]+)?(ingreso|alta)[\s:.\-]{0,12}(\d{1,2}/\d{1,2}/\d{2,4})\s+(\d{1,2}:\d{2}(?::\d{2})?)`)
	reStampAdmit    = regexp.MustCompile(`(?i)fecha[\s_]*(?:de[\s_]+)?ingreso[\s:.\-]{0,12}(\d{1,2}/\d{1,2}/\d{2,4})`)
	reStampDisch    = regexp.MustCompile(`(?i)fecha[\s_]*(?:de[\s_]+)?alta[\s:.\-]{0,12}(\d{1,2}/\d{1,2}/\d{2,4})`)
)

// parseDate builds a local timestamp from "D/M/YY[YY]" and an optional
// "H:MM[:SS]". Impossible calendar values are rejected.
func parseDate(d, hms string, loc *time.Location) (time.Time, bool) {
	parts := strings.Split(d, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if year < 100 {
		year += 2000
	}
	var hh, mm, ss int
	if hms != "" {
		tp := strings.Split(hms, ":")
		hh, _ = strconv.Atoi(tp[0])
		if len(tp) > 1 {
			mm, _ = strconv.Atoi(tp[1])
		}
		if len(tp) > 2 {
			ss, _ = strconv.Atoi(tp[2])
		}
		if hh > 23 || mm > 59 || ss > 59 {
			return time.Time{}, false
		}
	}
	t := time.Date(year, time.Month(month), day, hh, mm, ss, 0, loc)
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, false
	}
	return t, true
}

// dayIndex numbers calendar days so that consecutive local dates differ by
// exactly one regardless of DST transitions.
func dayIndex(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// HospitalDays counts admission-inclusive, discharge-exclusive days for a
// discharged patient (never negative) and admission-inclusive,
// today-inclusive days while admitted (at least 1).
func HospitalDays(admission time.Time, discharge *time.Time, now time.Time) int {
	if discharge != nil {
		n := dayIndex(*discharge) - dayIndex(admission)
		if n < 0 {
			return 0
		}
		return int(n)
	}
	n := dayIndex(now.In(admission.Location())) - dayIndex(admission) + 1
	if n < 1 {
		return 1
	}
	return int(n)
}

// stamps finds the first admission and discharge stamps. Date+time pairs
// take precedence over date-only matches. When a label repeats, the earliest
// occurrence in the text wins and later ones are ignored.
func stamps(text string, loc *time.Location) (admission, discharge Match[time.Time]) {
	for _, m := range reStampDateTime.FindAllStringSubmatch(text, -1) {
		t, ok := parseDate(m[2], m[3], loc)
		if !ok {
			continue
		}
		switch strings.ToLower(m[1]) {
		case "ingreso":
			if !admission.Found {
				admission = found(t)
			}
		case "alta":
			if !discharge.Found {
				discharge = found(t)
			}
		}
	}
	dateOnly := func(re *regexp.Regexp) Match[time.Time] {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if t, ok := parseDate(m[1], "", loc); ok {
				return found(t)
			}
		}
		return Match[time.Time]{}
	}
	if !admission.Found {
		admission = dateOnly(reStampAdmit)
	}
	if !discharge.Found {
		discharge = dateOnly(reStampDisch)
	}
	return admission, discharge
}

// ResolvePeriod locates the hospitalization episode. A missing admission
// date is the only fatal condition of an audit.
func ResolvePeriod(text string, opts Options) (Period, error) {
	opts = opts.withDefaults()
	admission, discharge := stamps(text, opts.Location)
	if !admission.Found {
		return Period{}, newInputError("fechaIngreso", "missing_admission_date",
			"No se pudo extraer la fecha de ingreso (dato obligatorio)", ErrMissingAdmissionDate)
	}

	p := Period{Admission: admission.Value}
	if discharge.Found && discharge.Value.Before(admission.Value) {
		p.Corrections = append(p.Corrections, errDischargeBeforeAdmission)
		discharge = Match[time.Time]{}
	}
	now := opts.Now().In(opts.Location)
	if discharge.Found {
		d := discharge.Value
		p.Discharge = &d
		p.Reference = d
	} else {
		p.Admitted = true
		p.Reference = now
	}
	p.Days = HospitalDays(p.Admission, p.Discharge, now)
	return p, nil
}
