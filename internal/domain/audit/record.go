// Package audit holds the persisted form of a chart audit and its events.
package audit

import (
	"time"

	"github.com/drfirst/go-chartaudit/internal/extraction"
)

// Detail type labels used in ErrorDetails.
const (
	DetailAdmission = "Admisión"
	DetailProgress  = "Evolución"
	DetailSurgical  = "Foja Quirúrgica"
	DetailDischarge = "Alta Médica"
	DetailSummary   = "Epicrisis"
	DetailStudies   = "Estudios"
)

// ErrorDetail is one typed finding of the flattened record.
type ErrorDetail struct {
	Type        string `json:"tipo"`
	Description string `json:"descripcion"`
}

// AdditionalData keeps the nested findings the flat columns cannot hold.
type AdditionalData struct {
	Staff        extraction.Staff          `json:"doctores"`
	Surgical     extraction.SurgicalRecord `json:"resultadosFoja"`
	HospitalDays int                       `json:"diasHospitalizacion"`
	Warnings     []extraction.Warning      `json:"advertencias"`
}

// Record is one row of the auditorias table.
type Record struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	FileName      string     `json:"nombre_archivo"`
	PatientName   string     `json:"nombre_paciente"`
	PatientID     string     `json:"dni_paciente"`
	Insurer       string     `json:"obra_social"`
	Room          string     `json:"habitacion"`
	AdmissionDate time.Time  `json:"fecha_ingreso"`
	DischargeDate *time.Time `json:"fecha_alta"`

	TotalErrors     int    `json:"total_errores"`
	AdmissionErrors int    `json:"errores_admision"`
	ProgressErrors  int    `json:"errores_evoluciones"`
	SurgicalErrors  int    `json:"errores_foja_quirurgica"`
	DischargeErrors int    `json:"errores_alta_medica"`
	SummaryErrors   int    `json:"errores_epicrisis"`
	Device          string `json:"bisturi_armonico"`
	Status          string `json:"estado"`

	StudiesTotal      int                `json:"estudios_total"`
	StudiesImaging    int                `json:"estudios_imagenes"`
	StudiesLaboratory int                `json:"estudios_laboratorio"`
	StudiesProcedures int                `json:"estudios_procedimientos"`
	TherapySessions   int                `json:"sesiones_kinesiologia"`
	Studies           []extraction.Study `json:"estudios"`
	StudyErrors       []string           `json:"errores_estudios"`

	ErrorDetails   []ErrorDetail              `json:"errores_detalle"`
	Communications []extraction.Communication `json:"comunicaciones"`
	Additional     AdditionalData             `json:"datos_adicionales"`

	// Result is the full engine output, kept so a stored audit can be reloaded.
	Result *extraction.Result `json:"resultado"`
}

func orSentinel(v, sentinel string) string {
	if v == "" {
		return sentinel
	}
	return v
}

// NewRecord flattens an audit result. Discharge-related counts are zero
// while the patient is still admitted.
func NewRecord(res *extraction.Result) *Record {
	p := res.Patient
	rec := &Record{
		FileName:      res.FileName,
		PatientName:   orSentinel(p.Name, extraction.NotFoundMale),
		PatientID:     orSentinel(p.NationalID, extraction.NotFoundMale),
		Insurer:       orSentinel(p.Insurer, extraction.NotFoundFemale),
		Room:          orSentinel(p.Room, extraction.NotFoundFemale),
		AdmissionDate: res.AdmissionDate,

		TotalErrors:     res.TotalErrors,
		AdmissionErrors: len(res.AdmissionErrors),
		ProgressErrors:  len(res.ProgressErrors),
		SurgicalErrors:  len(res.SurgicalErrors),
		Device:          res.Surgical.Device.String(),
		Status:          string(res.Status),

		StudiesTotal:      res.StudyCounts.Total,
		StudiesImaging:    res.StudyCounts.Imaging,
		StudiesLaboratory: res.StudyCounts.Laboratory,
		StudiesProcedures: res.StudyCounts.Procedures,
		TherapySessions:   res.TherapySessions,
		Studies:           nonNil(res.Studies),
		StudyErrors:       nonNil(res.StudyErrors),

		Communications: nonNil(res.Communications),
		Additional: AdditionalData{
			Staff:        res.Staff,
			Surgical:     res.Surgical,
			HospitalDays: res.HospitalDays,
			Warnings:     nonNil(res.Warnings),
		},
		Result: res,
	}

	if !res.Admitted {
		rec.DischargeDate = res.DischargeDate
		rec.DischargeErrors = len(res.DischargeErrors)
		rec.SummaryErrors = len(res.SummaryErrors)
	}

	rec.ErrorDetails = details(res)
	return rec
}

func details(res *extraction.Result) []ErrorDetail {
	out := []ErrorDetail{}
	add := func(kind string, msgs []string) {
		for _, m := range msgs {
			out = append(out, ErrorDetail{Type: kind, Description: m})
		}
	}

	add(DetailAdmission, res.AdmissionErrors)
	add(DetailProgress, res.ProgressErrors)
	for _, w := range res.Warnings {
		out = append(out, ErrorDetail{Type: w.Type, Description: w.Description})
	}
	add(DetailSurgical, res.SurgicalErrors)
	if !res.Admitted {
		add(DetailDischarge, res.DischargeErrors)
		add(DetailSummary, res.SummaryErrors)
	}
	add(DetailStudies, res.StudyErrors)
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
