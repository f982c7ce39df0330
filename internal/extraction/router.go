package extraction

import (
	"fmt"
	"strings"
)

// Findings is everything the router needs to derive communications.
type Findings struct {
	Admission        []string
	Progress         []string
	Warnings         []Warning
	DischargeNote    []string
	DischargeSummary []string
	Surgical         SurgicalRecord
	Staff            Staff
	Studies          []Study
	StudyErrors      []string
}

// Sector and responsible labels.
const (
	SectorAdmission  = "Admisión"
	SectorResidents  = "Residentes"
	SectorSurgery    = "Cirugía"
	SectorImaging    = "Diagnóstico por Imágenes"
	SectorLaboratory = "Laboratorio"
	SectorProcedures = "Endoscopía / Procedimientos"
	SectorRecords    = "Coordinación de Historias Clínicas"

	responsibleAdmission  = "Personal de Admisión"
	responsibleResidents  = "Equipo de Residentes"
	responsibleSurgeon    = "Cirujano Responsable"
	responsibleImaging    = "Jefe/a de Servicio"
	responsibleLaboratory = "Jefe/a de Laboratorio"
	responsibleProcedures = "Responsable de Procedimientos"
	responsibleRecords    = "Equipo Coordinación"
)

// Route maps findings to communications in a fixed order: admission,
// progress notes, progress warnings, discharge note, discharge summary,
// surgical record, device authorization, studies by category, and the
// studies normalization trace.
func Route(f Findings) []Communication {
	out := []Communication{}

	if len(f.Admission) > 0 {
		out = append(out, Communication{
			Sector:      SectorAdmission,
			Responsible: responsibleAdmission,
			Motive:      "Datos de admisión incompletos",
			Urgency:     UrgencyHigh,
			Errors:      f.Admission,
			Message:     "Se detectaron errores en los datos de admisión del paciente. Completar antes del envío a OSDE.",
		})
	}

	if len(f.Progress) > 0 {
		name, license := responsible(f.Staff.Residents, responsibleResidents)
		out = append(out, Communication{
			Sector:      SectorResidents,
			Responsible: name,
			Motive:      "Problemas en evoluciones médicas diarias",
			Urgency:     UrgencyHigh,
			Errors:      f.Progress,
			Message:     "Se detectaron días sin evolución médica diaria. Revisar y completar.",
			License:     license,
		})
	}

	if len(f.Warnings) > 0 {
		descs := make([]string, 0, len(f.Warnings))
		for _, w := range f.Warnings {
			descs = append(descs, w.Description)
		}
		out = append(out, Communication{
			Sector:      SectorResidents,
			Responsible: responsibleResidents,
			Motive:      "Advertencias sobre evoluciones médicas",
			Urgency:     UrgencyMedium,
			Errors:      descs,
			Message:     "Se detectaron advertencias relacionadas con evoluciones. Revisar.",
		})
	}

	surgeon, surgeonLicense := responsible(f.Staff.Surgeons, responsibleSurgeon)
	surgery := func(motive string, u Urgency, errs []string, msg string) Communication {
		return Communication{
			Sector:      SectorSurgery,
			Responsible: surgeon,
			Motive:      motive,
			Urgency:     u,
			Errors:      errs,
			Message:     msg,
			License:     surgeonLicense,
		}
	}

	if len(f.DischargeNote) > 0 {
		out = append(out, surgery("Falta registro de alta médica", UrgencyCritical, f.DischargeNote,
			"Se detectó ausencia de alta médica. Completar antes del envío a OSDE."))
	}
	if len(f.DischargeSummary) > 0 {
		out = append(out, surgery("Falta epicrisis (resumen de alta)", UrgencyCritical, f.DischargeSummary,
			"Se detectó ausencia de epicrisis. Completar."))
	}
	if len(f.Surgical.Errors) > 0 {
		out = append(out, surgery("Problemas en foja quirúrgica", UrgencyHigh, f.Surgical.Errors,
			"Se detectaron inconsistencias en la foja quirúrgica. Completar."))
	}
	if f.Surgical.Device == DeviceUsed {
		out = append(out, surgery("Uso de bisturí armónico - Requiere autorización especial", UrgencyCritical,
			[]string{"Se utilizó bisturí armónico"},
			"Se detectó uso de BISTURÍ ARMÓNICO. Verificar autorización de OSDE previa a facturación."))
	}

	byCat := map[StudyCategory][]Study{}
	for _, s := range f.Studies {
		if !s.ReportPresent && s.Type != TherapyType {
			byCat[s.Category] = append(byCat[s.Category], s)
		}
	}
	if list := byCat[CategoryImaging]; len(list) > 0 {
		out = append(out, Communication{
			Sector:      SectorImaging,
			Responsible: responsibleImaging,
			Motive:      "Estudios de imágenes sin informe",
			Urgency:     UrgencyHigh,
			Errors:      taggedStudies(list),
			Message:     fmt.Sprintf("Faltan informes en: %s. Adjuntar antes del envío a OSDE.", joinStudies(list)),
		})
	}
	if list := byCat[CategoryLaboratory]; len(list) > 0 {
		out = append(out, Communication{
			Sector:      SectorLaboratory,
			Responsible: responsibleLaboratory,
			Motive:      "Estudios de laboratorio sin resultado/informe",
			Urgency:     UrgencyMedium,
			Errors:      taggedStudies(list),
			Message:     fmt.Sprintf("Faltan resultados claros en: %s. Adjuntar reporte normalizado.", joinStudies(list)),
		})
	}
	if list := byCat[CategoryProcedure]; len(list) > 0 {
		out = append(out, Communication{
			Sector:      SectorProcedures,
			Responsible: responsibleProcedures,
			Motive:      "Procedimientos sin informe",
			Urgency:     UrgencyHigh,
			Errors:      taggedStudies(list),
			Message:     "Faltan informes y conclusiones de procedimientos. Cargar documentación.",
		})
	}

	if len(f.StudyErrors) > 0 {
		out = append(out, Communication{
			Sector:      SectorRecords,
			Responsible: responsibleRecords,
			Motive:      "Normalización de estudios",
			Urgency:     UrgencyMedium,
			Errors:      f.StudyErrors,
			Message:     "Se detectaron estudios sin informe o sin fecha. Normalizar documentación para auditoría externa.",
		})
	}
	return out
}

// responsible joins the distinct staff names with a title, or falls back to
// the generic role title. The license list follows the same order.
func responsible(staff []Doctor, fallback string) (string, string) {
	seen := make(map[string]bool)
	var names, licenses []string
	for _, d := range staff {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		names = append(names, "Dr/a "+d.Name)
		if d.License != "" {
			licenses = append(licenses, d.License)
		}
	}
	if len(names) == 0 {
		return fallback, ""
	}
	return strings.Join(names, ", "), strings.Join(licenses, ", ")
}

func taggedStudies(list []Study) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, fmt.Sprintf("[%s] %s", s.Category, studyLabel(s)))
	}
	return out
}

func joinStudies(list []Study) string {
	parts := make([]string, 0, len(list))
	for _, s := range list {
		parts = append(parts, studyLabel(s))
	}
	return strings.Join(parts, "; ")
}
