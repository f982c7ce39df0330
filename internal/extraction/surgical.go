package extraction

import (
	"fmt"
	"regexp"
)

const surgicalWindow = 3000

// Surgical record finding strings.
const (
	ErrNoSurgicalRecord  = "❌ CRÍTICO: No se encontró foja quirúrgica en el documento"
	ErrNoStartTime       = "❌ CRÍTICO: Hora de comienzo no encontrada en foja quirúrgica"
	ErrNoSurgeryDate     = "❌ CRÍTICO: Fecha de cirugía no encontrada en foja quirúrgica"
	WarnNoEndTime        = "⚠️ ADVERTENCIA: Hora de finalización no encontrada en foja quirúrgica"
	duplicateTeamMessage = "❌ CRÍTICO: El %s y el %s tienen el mismo nombre: %s. Deben ser diferentes."
)

const answer = `(s[ií]|no)(?:\P{L}|$)`

var (
	reSurgicalHeader = regexp.MustCompile(`(?i)(?:foja|hoja|registro|parte)\s+quir[uú]rgic[ao]|protocolo\s+(?:quir[uú]rgico|operatorio)`)

	surgicalIndicators = []*regexp.Regexp{
		regexp.MustCompile(`(?i)cirujan[oa][: \t]*[a-záéíóúñ]{3}`),
		regexp.MustCompile(`(?i)anestesi(?:sta|[oó]log[oa])[: \t]*[a-záéíóúñ]{3}`),
		regexp.MustCompile(`(?i)hora\s+(?:de\s+)?comienzo[:\s]*\d{1,2}:\d{2}`),
		regexp.MustCompile(`(?i)bistur[ií]\s+arm[oó]nico`),
	}

	deviceRules = []*regexp.Regexp{
		regexp.MustCompile(`(?i)uso\s+de\s+bistur[ií]\s+arm[oó]nico\??[:\s]*` + answer),
		regexp.MustCompile(`(?i)bistur[ií]\s+arm[oó]nico\??[:\s]*` + answer),
		regexp.MustCompile(`(?i)arm[oó]nico\??[:\s]*` + answer),
		regexp.MustCompile(`(?i)bistur[ií][^\n]*?\b` + answer),
		regexp.MustCompile(`(?i)arm[oó]nico[^\n]*?\b` + answer),
	}

	teamRules = []struct {
		role Role
		re   *regexp.Regexp
	}{
		{RoleSurgeon, regexp.MustCompile(`(?i)\bcirujan[oa]\b[: \t]*([^\n]*)`)},
		{RoleFirstAssistant, regexp.MustCompile(`(?i)\bprimer\s+ayudante\b[: \t]*([^\n]*)`)},
		{RoleAnesthesiologist, regexp.MustCompile(`(?i)\banestesi(?:sta|[oó]log[oa])\b[: \t]*([^\n]*)`)},
		{RoleInstrumentalist, regexp.MustCompile(`(?i)\binstrumentadora?\b[: \t]*([^\n]*)`)},
		{RoleResidentAssistant, regexp.MustCompile(`(?i)\bayudante\s+(?:de\s+)?residencia\b[: \t]*([^\n]*)`)},
	}
	reGenericAssistant = regexp.MustCompile(`(?i)\bayudante\b(\s+(?:de\s+)?residencia\b)?[: \t]*([^\n]*)`)
	rePrimerBefore     = regexp.MustCompile(`(?i)primer\s*$`)

	startTimeRules = []*regexp.Regexp{
		regexp.MustCompile(`(?i)hora\s+(?:de\s+)?comienzo[:\s]*(\d{1,2}:\d{2})`),
		regexp.MustCompile(`(?i)hora\s+(?:de\s+)?inicio[:\s]*(\d{1,2}:\d{2})`),
		regexp.MustCompile(`(?i)comienzo[:\s]*(\d{1,2}:\d{2})`),
	}
	endTimeRules = []*regexp.Regexp{
		regexp.MustCompile(`(?i)hora\s+(?:de\s+)?finalizaci[oó]n[:\s]*(\d{1,2}:\d{2})`),
		regexp.MustCompile(`(?i)hora\s+(?:de\s+)?fin\b[:\s]*(\d{1,2}:\d{2})`),
		regexp.MustCompile(`(?i)finalizaci[oó]n[:\s]*(\d{1,2}:\d{2})`),
	}
	reLabelledDate = regexp.MustCompile(`(?i)fecha[:\s]*(\d{1,2}/\d{1,2}/\d{4})`)
	reAnyDate      = regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})`)
)

// AnalyzeSurgicalRecord extracts the operative report. Without a section
// header the analysis still runs when at least two circumstantial indicators
// are present; otherwise a missing record is reported when required.
func AnalyzeSurgicalRecord(text string, requireRecord bool) SurgicalRecord {
	rec := SurgicalRecord{Team: []TeamMember{}, Errors: []string{}}

	start := 0
	if loc := reSurgicalHeader.FindStringIndex(text); loc != nil {
		start = loc[0]
	} else {
		hits := 0
		for _, re := range surgicalIndicators {
			if re.MatchString(text) {
				hits++
			}
		}
		if hits < 2 {
			if requireRecord {
				rec.Errors = append(rec.Errors, ErrNoSurgicalRecord)
			}
			return rec
		}
	}
	section := window(text, start, start, 0, surgicalWindow)

	rec.Device = deviceAnswer(section)
	rec.Team = surgicalTeam(section)

	if m := firstIndexed(section, startTimeRules); m != nil {
		st := section[m[2]:m[3]]
		rec.StartTime = &st
		if d, ok := precedingDate(section[:m[0]]); ok {
			rec.Date = &d
		} else {
			rec.Errors = append(rec.Errors, ErrNoSurgeryDate)
		}
	} else {
		rec.Errors = append(rec.Errors, ErrNoStartTime)
	}

	if m := firstIndexed(section, endTimeRules); m != nil {
		et := section[m[2]:m[3]]
		rec.EndTime = &et
	} else {
		rec.Errors = append(rec.Errors, WarnNoEndTime)
	}

	rec.Errors = append(rec.Errors, ValidateTeam(rec.Team)...)
	return rec
}

func deviceAnswer(section string) DeviceUse {
	for _, re := range deviceRules {
		m := re.FindStringSubmatch(section)
		if m == nil {
			continue
		}
		if foldWord(m[1]) == "NO" {
			return DeviceNotUsed
		}
		return DeviceUsed
	}
	return DeviceUndetermined
}

func surgicalTeam(section string) []TeamMember {
	team := []TeamMember{}
	for _, tr := range teamRules {
		for _, m := range tr.re.FindAllStringSubmatch(section, -1) {
			if name, ok := PersonName(m[1]); ok {
				team = append(team, TeamMember{Role: tr.role, Name: name})
				break
			}
		}
	}
	for _, m := range reGenericAssistant.FindAllStringSubmatchIndex(section, -1) {
		if m[2] >= 0 || rePrimerBefore.MatchString(section[:m[0]]) {
			continue
		}
		if name, ok := PersonName(section[m[4]:m[5]]); ok {
			team = append(team, TeamMember{Role: RoleAssistant, Name: name})
			break
		}
	}
	return team
}

func firstIndexed(text string, rules []*regexp.Regexp) []int {
	for _, re := range rules {
		if m := re.FindStringSubmatchIndex(text); m != nil {
			return m
		}
	}
	return nil
}

// precedingDate picks the labelled date closest before the start time,
// falling back to any date.
func precedingDate(before string) (string, bool) {
	for _, re := range []*regexp.Regexp{reLabelledDate, reAnyDate} {
		all := re.FindAllStringSubmatch(before, -1)
		if len(all) > 0 {
			return all[len(all)-1][1], true
		}
	}
	return "", false
}

// ValidateTeam reports one error per pair of critical roles whose members
// share a normalized name.
func ValidateTeam(team []TeamMember) []string {
	order := []Role{RoleSurgeon, RoleFirstAssistant, RoleInstrumentalist, RoleAnesthesiologist}
	byRole := make(map[Role]string, len(order))
	for _, m := range team {
		if !m.Role.Critical() {
			continue
		}
		if _, ok := byRole[m.Role]; !ok {
			byRole[m.Role] = normalizedName(m.Name)
		}
	}
	errs := []string{}
	for i := 0; i < len(order); i++ {
		a, ok := byRole[order[i]]
		if !ok || a == "" {
			continue
		}
		for j := i + 1; j < len(order); j++ {
			if b, ok := byRole[order[j]]; ok && a == b {
				errs = append(errs, fmt.Sprintf(duplicateTeamMessage, order[i].Label(), order[j].Label(), a))
			}
		}
	}
	return errs
}
