package extraction

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type studyPattern struct {
	re    *regexp.Regexp
	label string
}

var (
	imagingPatterns = []studyPattern{
		{regexp.MustCompile(`(?i)\b(?:tac|tc|tomograf[ií]a)\b`), "TAC"},
		{regexp.MustCompile(`(?i)\b(?:rm|rmn|resonancia)\b`), "Resonancia Magnética"},
		{regexp.MustCompile(`(?i)\b(?:rx|radiograf[ií]a|r[ xg]rafia)\b`), "Radiografía"},
		{regexp.MustCompile(`(?i)\b(?:eco|ecograf[ií]a|ultrasonido)\b`), "Ecografía"},
		{regexp.MustCompile(`(?i)\bdoppler\b`), "Doppler"},
		{regexp.MustCompile(`(?i)\bangiotac|\bangio[-\s]?rm\b`), "Angio"},
	}
	labPatterns = []studyPattern{
		{regexp.MustCompile(`(?i)\bhemograma\b`), "Hemograma"},
		{regexp.MustCompile(`(?i)\bpcr(?:[^\w-]|$)`), "PCR"},
		{regexp.MustCompile(`(?i)\bvsg\b`), "VSG"},
		{regexp.MustCompile(`(?i)\bglucemia\b`), "Glucemia"},
		{regexp.MustCompile(`(?i)\bcreatinin(?:a|emia)?\b`), "Creatinina"},
		{regexp.MustCompile(`(?i)\burea\b`), "Urea"},
		{regexp.MustCompile(`(?i)\b(?:ionograma|sodio|potasio|cloro)\b`), "Ionograma"},
		{regexp.MustCompile(`(?i)\b(?:hep[aá]tic[oa]|tgo|tgp|gamm?aglutamil|bilirrubinas?)\b`), "Perfil hepático"},
		{regexp.MustCompile(`(?i)\bur[ie]n[aá]lisis\b|sumario\s+de\s+orina|orina\s+completa`), "Orina completa"},
	}
	procedurePatterns = []studyPattern{
		{regexp.MustCompile(`(?i)\bendoscop[ií]a\s+(?:digestiva\s+)?alta\b`), "Endoscopía alta"},
		{regexp.MustCompile(`(?i)\bcolonoscop[ií]a`), "Colonoscopía"},
		{regexp.MustCompile(`(?i)\bbroncoscop[ií]a`), "Broncoscopía"},
		{regexp.MustCompile(`(?i)\beco[-\s]?cardiogram?a\b`), "Ecocardiograma"},
		{regexp.MustCompile(`(?i)\becg\b|electrocardiograma`), "Electrocardiograma"},
		{regexp.MustCompile(`(?i)\bparacentesis|toracocentesis|punci[oó]n\s+lumbar`), "Procedimiento"},
	}
	reTherapy = regexp.MustCompile(`(?i)\b(?:ktr|kine|kinesio|kinesiolog[ií]a|kinesioterapia|kinesioter\w+)(?:\P{L}|$)`)

	reStudyDate   = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{2,4})\b`)
	reStudyTime   = regexp.MustCompile(`\b(\d{1,2}:\d{2}(?::\d{2})?)\b`)
	reReport      = regexp.MustCompile(`(?i)informe|impresi[oó]n|conclusi[oó]n|resultado`)
	reNoReport    = regexp.MustCompile(`(?i)\b(?:sin|falta|pendiente(?:\s+de)?|no)\s+(?:informe|resultado)|\bno\s+informad[oa]|informe\s+pendiente`)
	reStudyPlace  = regexp.MustCompile(`(?i)servicio[:\s]+([a-z0-9\s]+)$`)
	reStudyResult = regexp.MustCompile(`(?i)(?:resultado|impresi[oó]n|conclusi[oó]n)[:\s-]+(.{10,200})`)
	reRegion      = regexp.MustCompile(`(?i)\bde\s+(t[oó]rax|abdomen|pelvis|columna|cerebro|cr[aá]neo|cuello|rodilla|hombro|hep[aá]tico|renal|tiroides|obst[eé]trica|venoso|arterial|car[oó]tideo)`)
	rePage        = regexp.MustCompile(`(?i)p[aá]gina\s+(\d+)`)

	reExternalSection = regexp.MustCompile(`(?i)ex[áa]menes\s+complementarios|estudios\s+entregados\s+por\s+el\s+paciente`)
	reMainSection     = regexp.MustCompile(`(?i)evoluci[oó]n|visita|alta\s+m[eé]dica|epicrisis|foja|cirug[íi]a`)
)

// Lab types and therapy never carry an anatomical region.
var regionless = map[string]bool{
	TherapyType: true, "Perfil hepático": true, "Hemograma": true, "PCR": true,
	"VSG": true, "Glucemia": true, "Creatinina": true, "Urea": true,
	"Orina completa": true, "Ionograma": true,
}

// StudiesReport is the outcome of the ancillary-studies scan.
type StudiesReport struct {
	Studies         []Study
	Counts          StudyCounts
	Errors          []string
	TherapySessions int
}

// studyScan tracks the page cursor and accumulators of one scan.
type studyScan struct {
	page         int
	external     map[int]bool
	therapyPages map[int]bool
	studies      []Study
}

// ExtractStudies scans the record line by line. Pages belonging to studies
// brought by the patient are skipped, except for therapy sessions which are
// counted once per page wherever they appear.
func ExtractStudies(raw string) StudiesReport {
	lines := strings.Split(normalizeKeepPages(raw), "\n")
	sc := &studyScan{external: externalPages(lines), therapyPages: make(map[int]bool)}

	sc.page = 1
	for _, line := range lines {
		sc.trackPage(line)
		l := strings.TrimSpace(line)
		if l == "" {
			continue
		}
		if reTherapy.MatchString(l) {
			sc.therapyPages[sc.page] = true
		}
		if sc.external[sc.page] {
			continue
		}
		sc.firstOf(CategoryImaging, imagingPatterns, l)
		sc.firstOf(CategoryLaboratory, labPatterns, l)
		sc.firstOf(CategoryProcedure, procedurePatterns, l)
	}
	return sc.report()
}

func (sc *studyScan) trackPage(line string) {
	if m := rePage.FindStringSubmatch(line); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			sc.page = n
		}
	}
}

func (sc *studyScan) firstOf(cat StudyCategory, patterns []studyPattern, line string) {
	for _, p := range patterns {
		if p.re.MatchString(line) {
			sc.studies = append(sc.studies, newStudy(cat, p.label, line, sc.page))
			return
		}
	}
}

// externalPages marks every page touched by an externally supplied studies
// section, from its heading until the next main clinical section.
func externalPages(lines []string) map[int]bool {
	pages := make(map[int]bool)
	page, inside := 1, false
	for _, line := range lines {
		if m := rePage.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				page = n
			}
		}
		switch {
		case reExternalSection.MatchString(line):
			inside = true
		case inside && reMainSection.MatchString(line):
			inside = false
		}
		if inside {
			pages[page] = true
		}
	}
	return pages
}

func newStudy(cat StudyCategory, label, line string, page int) Study {
	s := Study{
		Category: cat,
		Type:     studyType(label, line),
		Page:     page,
		Warnings: []string{},
	}
	if m := reStudyDate.FindStringSubmatch(line); m != nil {
		s.Date = &m[1]
	}
	if m := reStudyTime.FindStringSubmatch(line); m != nil {
		s.Time = &m[1]
	}
	if m := reStudyPlace.FindStringSubmatch(line); m != nil {
		v := strings.TrimSpace(m[1])
		s.Location = &v
	}
	if m := reStudyResult.FindStringSubmatch(line); m != nil {
		v := strings.TrimSpace(m[1])
		s.Result = &v
	}
	s.ReportPresent = reReport.MatchString(line) && !reNoReport.MatchString(line)
	if !s.ReportPresent {
		s.Warnings = append(s.Warnings, WarnNoReport)
	}
	if s.Date == nil {
		s.Warnings = append(s.Warnings, WarnNoDate)
	}
	return s
}

func studyType(label, line string) string {
	if regionless[label] {
		return label
	}
	if m := reRegion.FindStringSubmatch(line); m != nil {
		return label + " de " + m[1]
	}
	return label
}

func (sc *studyScan) report() StudiesReport {
	seen := make(map[string]bool)
	out := StudiesReport{Studies: []Study{}, Errors: []string{}}
	for _, s := range sc.studies {
		date := "NA"
		if s.Date != nil {
			date = *s.Date
		}
		key := string(s.Category) + "|" + strings.ToUpper(s.Type) + "|" + date
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Studies = append(out.Studies, s)
	}

	if n := len(sc.therapyPages); n > 0 {
		pages := make([]int, 0, n)
		for p := range sc.therapyPages {
			pages = append(pages, p)
		}
		sort.Ints(pages)
		out.Studies = append(out.Studies, Study{
			Category:      CategoryProcedure,
			Type:          TherapyType,
			ReportPresent: true,
			Warnings:      []string{},
			Page:          pages[0],
			Sessions:      n,
		})
		out.TherapySessions = n
	}

	for _, s := range out.Studies {
		switch s.Category {
		case CategoryImaging:
			out.Counts.Imaging++
		case CategoryLaboratory:
			out.Counts.Laboratory++
		case CategoryProcedure:
			out.Counts.Procedures++
		}
		if !s.ReportPresent && s.Type != TherapyType {
			out.Errors = append(out.Errors, missingReport(s))
		}
	}
	out.Counts.Total = len(out.Studies)
	out.Counts.Therapy = out.TherapySessions
	return out
}

func missingReport(s Study) string {
	return fmt.Sprintf("Estudio sin informe: [%s] %s (Hoja %d)", s.Category, studyLabel(s), s.Page)
}

// studyLabel renders "type (date)" or just the type when undated.
func studyLabel(s Study) string {
	if s.Date != nil {
		return fmt.Sprintf("%s (%s)", s.Type, *s.Date)
	}
	return s.Type
}
