package extraction

import (
	"strings"
	"time"
)

// Options tune one audit run.
type Options struct {
	// Now returns the audit moment; it stands in for the discharge of a
	// patient still admitted. Defaults to time.Now.
	Now func() time.Time
	// Location is the zone of the hospital's wall-clock stamps. Defaults
	// to time.Local.
	Location *time.Location
	// RequireSurgicalRecord reports a missing surgical record as a finding.
	RequireSurgicalRecord bool
}

// DefaultOptions requires a surgical record and uses the local clock.
func DefaultOptions() Options {
	return Options{RequireSurgicalRecord: true}
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// Audit runs the whole pipeline over the extracted text of one document.
// Only empty input or an unresolvable admission date fail; every other
// problem is reported inside the result.
func Audit(text, fileName string, opts Options) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, newInputError("pdfText", "empty_text", "Faltan datos requeridos", ErrEmptyText)
	}
	if strings.TrimSpace(fileName) == "" {
		return nil, newInputError("nombreArchivo", "empty_file_name", "Faltan datos requeridos", ErrEmptyFileName)
	}
	opts = opts.withDefaults()

	norm := Normalize(text)
	period, err := ResolvePeriod(norm, opts)
	if err != nil {
		return nil, err
	}

	patient := ExtractPatient(norm)
	patient.AdmissionErrors = append(patient.AdmissionErrors, period.Corrections...)

	progress := AuditProgressNotes(norm, period, patient.IntensiveCare)

	dischargeNote, dischargeSummary := []string{}, []string{}
	if !period.Admitted {
		dischargeNote = CheckDischargeNote(norm)
		dischargeSummary = CheckDischargeSummary(norm)
	}

	staff := ExtractStaff(norm)
	surgical := AnalyzeSurgicalRecord(norm, opts.RequireSurgicalRecord)
	studies := ExtractStudies(text)

	res := &Result{
		FileName:        fileName,
		Patient:         patient,
		AdmissionDate:   period.Admission,
		DischargeDate:   period.Discharge,
		Admitted:        period.Admitted,
		HospitalDays:    period.Days,
		AdmissionErrors: patient.AdmissionErrors,
		ProgressErrors:  progress.Errors,
		ProgressDays:    progress.Days,
		Warnings:        progress.Warnings,
		DischargeErrors: dischargeNote,
		SummaryErrors:   dischargeSummary,
		SurgicalErrors:  surgical.Errors,
		Surgical:        surgical,
		Staff:           staff,
		Studies:         studies.Studies,
		StudyCounts:     studies.Counts,
		StudyErrors:     studies.Errors,
		TherapySessions: studies.TherapySessions,
	}
	res.Communications = Route(Findings{
		Admission:        res.AdmissionErrors,
		Progress:         res.ProgressErrors,
		Warnings:         res.Warnings,
		DischargeNote:    res.DischargeErrors,
		DischargeSummary: res.SummaryErrors,
		Surgical:         surgical,
		Staff:            staff,
		Studies:          res.Studies,
		StudyErrors:      res.StudyErrors,
	})
	res.TotalErrors = res.CountErrors()
	res.Status = StatusFor(res.TotalErrors)
	return res, nil
}

// CountErrors sums every counted finding. Warnings are excluded, and
// discharge checks never count while the patient is still admitted.
func (r *Result) CountErrors() int {
	n := len(r.AdmissionErrors) + len(r.ProgressErrors) + len(r.SurgicalErrors) + len(r.StudyErrors)
	if !r.Admitted {
		n += len(r.DischargeErrors) + len(r.SummaryErrors)
	}
	return n
}

// StatusFor is Approved only for a clean record.
func StatusFor(total int) Status {
	if total == 0 {
		return StatusApproved
	}
	return StatusPendingCorrection
}
