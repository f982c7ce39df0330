package extraction

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Only the head of the record is searched for demographics; body text
// repeats labels such as "paciente" in narrative.
const demographicsWindowLines = 120

const icuContextRadius = 150

// Admission-data error strings.
const (
	ErrPatientName = "Nombre del paciente no encontrado"
	ErrPatientID   = "DNI del paciente no encontrado"
	ErrBirthDate   = "Fecha de nacimiento no encontrada"
	ErrPatientSex  = "Sexo del paciente no especificado"
)

var (
	nameRules = []rule[string]{
		{regexp.MustCompile(`(?i)nombre(?:\s+y\s+apellidos?|\s+completo)?[: \t]*([A-ZÁÉÍÓÚÑ][A-ZÁÉÍÓÚÑ \t,]+)`), group(1, 3)},
		{regexp.MustCompile(`(?i)paciente[: \t]*([A-ZÁÉÍÓÚÑ][A-ZÁÉÍÓÚÑ \t,]+)`), group(1, 3)},
		{regexp.MustCompile(`(?i)apellidos?(?:\s+y\s+nombres?)?[: \t]*([A-ZÁÉÍÓÚÑ][A-ZÁÉÍÓÚÑ \t,]+)`), group(1, 3)},
	}
	idRules = []rule[string]{
		{regexp.MustCompile(`(?i)\bdni[:\s.]*(\d{1,2}\.\d{3}\.\d{3}|\d{7,8})(?:\D|$)`), nationalID},
		{regexp.MustCompile(`(?i)documento[:\s.]*(\d{1,2}\.\d{3}\.\d{3}|\d{7,8})(?:\D|$)`), nationalID},
	}
	reBirthDate = regexp.MustCompile(`(?i)fecha[:\s]*(?:de[:\s]+)?nacimiento[:\s]*(\d{1,2}/\d{1,2}/\d{4})`)
	reSex       = regexp.MustCompile(`(?i)sexo[:\s]*(mujer|hombre|femenino|masculino|f|m)(?:\P{L}|$)`)
	insurerRule = []rule[string]{
		{regexp.MustCompile(`(?i)obra[\s_]*social[\s:]*(\d+[ \t-]*[A-Za-zÁÉÍÓÚáéíóúñÑ \t]+)`), group(1, 2)},
		{regexp.MustCompile(`(?i)obra[\s_]*social[\s:]*([A-Za-zÁÉÍÓÚáéíóúñÑ \t]+)`), group(1, 2)},
	}
	reRoomGeneric = regexp.MustCompile(`(?i)\b(?:habitaci[oó]n|hab|box|sala)\b[.: \t-]*([A-Za-z0-9][A-Za-z0-9 \t-]*)`)
	reRoomBox     = regexp.MustCompile(`(?i)\bbox\b[: \t-]*([A-Za-z0-9][A-Za-z0-9 \t-]*)`)
	reRoomTail    = regexp.MustCompile(`[ ,]+-?$`)

	reICUToken   = regexp.MustCompile(`(?i)\b(?:uti|uci|uco)\b|terapia\s+intensiva|cuidados\s+intensivos|unidad\s+coronaria`)
	reICUContext = regexp.MustCompile(`(?i)habitaci|sector|servicio|ingres|internad|internaci|\bbox\b|\bcama\b|\bsala\b`)
)

func nationalID(g []string) Match[string] {
	return found(strings.ReplaceAll(g[1], ".", ""))
}

// ExtractPatient pulls demographics from normalized text. Missing fields are
// reported as admission errors, never as failures.
func ExtractPatient(text string) Patient {
	lines := strings.Split(text, "\n")
	if len(lines) > demographicsWindowLines {
		lines = lines[:demographicsWindowLines]
	}
	head := strings.Join(lines, "\n")

	p := Patient{AdmissionErrors: []string{}}

	if m := firstMatch(head, nameRules); m.Found {
		p.Name = strings.Trim(m.Value, " \t,")
	} else {
		p.AdmissionErrors = append(p.AdmissionErrors, ErrPatientName)
	}

	if m := firstMatch(head, idRules); m.Found {
		p.NationalID = m.Value
	} else {
		p.AdmissionErrors = append(p.AdmissionErrors, ErrPatientID)
	}

	if m := reBirthDate.FindStringSubmatch(head); m != nil {
		p.BirthDate = m[1]
	} else {
		p.AdmissionErrors = append(p.AdmissionErrors, ErrBirthDate)
	}

	if m := reSex.FindStringSubmatch(head); m != nil {
		p.Sex = canonicalSex(m[1])
	} else {
		p.AdmissionErrors = append(p.AdmissionErrors, ErrPatientSex)
	}

	p.Insurer = firstMatch(head, insurerRule).OrElse("")
	p.Room = findRoom(head, text)
	p.IntensiveCare = isIntensiveCare(p.Room, text)
	return p
}

func canonicalSex(s string) string {
	s = strings.ToLower(s)
	switch s {
	case "f", "femenino":
		return "Femenino"
	case "m", "masculino":
		return "Masculino"
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// findRoom prefers an explicit BOX marker anywhere in the document over the
// generic room label in the head. Cash-register "CAJA" tokens are never a room.
func findRoom(head, text string) string {
	var room string
	if m := reRoomGeneric.FindStringSubmatch(head); m != nil {
		room = m[1]
	}
	if m := reRoomBox.FindStringSubmatch(text); m != nil && strings.TrimSpace(m[1]) != "" {
		room = "BOX " + strings.Join(strings.Fields(m[1]), " ")
	} else if room == "" {
		if m := reRoomGeneric.FindStringSubmatch(text); m != nil {
			room = m[1]
		}
	}
	room = strings.TrimSpace(reRoomTail.ReplaceAllString(strings.TrimSpace(room), ""))
	if len(room) >= 3 && strings.EqualFold(room[:3], "box") {
		room = strings.ToUpper(room)
	}
	return room
}

// isIntensiveCare checks the room label and then ICU tokens in the body whose
// surroundings talk about the patient's placement.
func isIntensiveCare(room, text string) bool {
	if room != "" && reICUToken.MatchString(room) {
		return true
	}
	for _, loc := range reICUToken.FindAllStringIndex(text, -1) {
		if reICUContext.MatchString(window(text, loc[0], loc[1], icuContextRadius, icuContextRadius)) {
			return true
		}
	}
	return false
}
