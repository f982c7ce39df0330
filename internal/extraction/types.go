// Package extraction implements the clinical-record audit engine.
// It turns the plain text of a hospitalization record into patient facts,
// typed documentation findings and department-routed communications.
package extraction

import (
	"encoding/json"
	"time"
)

// Sentinels shown to people when a field could not be extracted.
// Internal decisions always branch on the empty value, never on these.
const (
	NotFoundMale   = "No encontrado"
	NotFoundFemale = "No encontrada"
)

// Status is the overall audit verdict
type Status string

const (
	StatusPendingCorrection Status = "Pendiente de corrección"
	StatusApproved          Status = "Aprobado"
)

// Urgency is the communication urgency tier
type Urgency string

const (
	UrgencyCritical Urgency = "CRÍTICA"
	UrgencyHigh     Urgency = "ALTA"
	UrgencyMedium   Urgency = "MEDIA"
)

// Rank orders urgencies; higher is more urgent.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyCritical:
		return 3
	case UrgencyHigh:
		return 2
	case UrgencyMedium:
		return 1
	}
	return 0
}

// Patient holds the admission data found in the leading part of the record.
type Patient struct {
	Name            string   `json:"nombre,omitempty"`
	NationalID      string   `json:"dni,omitempty"`
	BirthDate       string   `json:"fecha_nacimiento,omitempty"`
	Sex             string   `json:"sexo,omitempty"`
	Insurer         string   `json:"obra_social"`
	Room            string   `json:"habitacion"`
	IntensiveCare   bool     `json:"uci"`
	AdmissionErrors []string `json:"errores_admision"`
}

// MarshalJSON fills the UI-facing sentinels for insurer and room.
func (p Patient) MarshalJSON() ([]byte, error) {
	type plain Patient
	out := plain(p)
	if out.Insurer == "" {
		out.Insurer = NotFoundFemale
	}
	if out.Room == "" {
		out.Room = NotFoundFemale
	}
	if out.AdmissionErrors == nil {
		out.AdmissionErrors = []string{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the encoding written by MarshalJSON, mapping the
// sentinels back to empty values.
func (p *Patient) UnmarshalJSON(b []byte) error {
	type plain Patient
	var in plain
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	if in.Insurer == NotFoundFemale {
		in.Insurer = ""
	}
	if in.Room == NotFoundFemale {
		in.Room = ""
	}
	*p = Patient(in)
	return nil
}

// Period is the hospitalization episode.
type Period struct {
	Admission   time.Time
	Discharge   *time.Time
	Admitted    bool
	Days        int
	Reference   time.Time // discharge, or the audit moment while admitted
	Corrections []string  // admission-data errors raised while resolving dates
}

// DayState classifies one calendar day of the hospitalization.
type DayState string

const (
	DayCovered          DayState = "con_evolucion"
	DayCriticalMissing  DayState = "falta_evolucion"
	DayAdmissionExempt  DayState = "dia_ingreso"
	DayDischargeWarning DayState = "dia_alta_sin_evolucion"
)

// DayCoverage is the progress-note classification for one day.
type DayCoverage struct {
	Date        string   `json:"fecha"`
	State       DayState `json:"estado"`
	Description string   `json:"descripcion,omitempty"`
}

// Warning is a non-counted finding.
type Warning struct {
	Type        string `json:"tipo"`
	Description string `json:"descripcion"`
	Date        string `json:"fecha,omitempty"`
}

// Doctor is a staff member matched through a license marker.
type Doctor struct {
	Name    string `json:"nombre"`
	License string `json:"matricula,omitempty"`
}

// Staff groups matched doctors by role.
type Staff struct {
	Residents []Doctor `json:"residentes"`
	Surgeons  []Doctor `json:"cirujanos"`
	Others    []Doctor `json:"otros"`
}

// Role is a surgical-team role.
type Role string

const (
	RoleSurgeon           Role = "cirujano"
	RoleFirstAssistant    Role = "primer_ayudante"
	RoleAnesthesiologist  Role = "anestesista"
	RoleInstrumentalist   Role = "instrumentador"
	RoleResidentAssistant Role = "ayudante_residencia"
	RoleAssistant         Role = "ayudante"
)

// Label returns the role as written in messages.
func (r Role) Label() string {
	switch r {
	case RoleFirstAssistant:
		return "primer ayudante"
	case RoleResidentAssistant:
		return "ayudante residencia"
	}
	return string(r)
}

// Critical reports whether the role takes part in the uniqueness check.
func (r Role) Critical() bool {
	switch r {
	case RoleSurgeon, RoleFirstAssistant, RoleInstrumentalist, RoleAnesthesiologist:
		return true
	}
	return false
}

// TeamMember is one named person of the surgical team.
type TeamMember struct {
	Role Role   `json:"rol"`
	Name string `json:"nombre"`
}

// DeviceUse is the tri-state harmonic scalpel answer.
type DeviceUse int

const (
	DeviceUndetermined DeviceUse = iota
	DeviceUsed
	DeviceNotUsed
)

// String renders the stored flag.
func (d DeviceUse) String() string {
	switch d {
	case DeviceUsed:
		return "SI"
	case DeviceNotUsed:
		return "NO"
	}
	return "No determinado"
}

// MarshalJSON renders "SI", "NO" or null.
func (d DeviceUse) MarshalJSON() ([]byte, error) {
	switch d {
	case DeviceUsed:
		return []byte(`"SI"`), nil
	case DeviceNotUsed:
		return []byte(`"NO"`), nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts the values produced by MarshalJSON.
func (d *DeviceUse) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch {
	case s == nil:
		*d = DeviceUndetermined
	case *s == "SI":
		*d = DeviceUsed
	case *s == "NO":
		*d = DeviceNotUsed
	default:
		*d = DeviceUndetermined
	}
	return nil
}

// SurgicalRecord is the analyzed operative report.
type SurgicalRecord struct {
	Device    DeviceUse    `json:"bisturi_armonico"`
	Team      []TeamMember `json:"equipo_quirurgico"`
	Date      *string      `json:"fecha_cirugia"`
	StartTime *string      `json:"hora_inicio"`
	EndTime   *string      `json:"hora_fin"`
	Errors    []string     `json:"errores"`
}

// StudyCategory is the ancillary study family.
type StudyCategory string

const (
	CategoryImaging    StudyCategory = "Imagenes"
	CategoryLaboratory StudyCategory = "Laboratorio"
	CategoryProcedure  StudyCategory = "Procedimientos"
)

// TherapyType labels in-house therapy sessions.
const TherapyType = "Kinesiología"

// Study warning tags
const (
	WarnNoReport = "sin informe"
	WarnNoDate   = "sin fecha"
)

// Study is one imaging, laboratory or procedure mention.
type Study struct {
	Category      StudyCategory `json:"categoria"`
	Type          string        `json:"tipo"`
	Date          *string       `json:"fecha"`
	Time          *string       `json:"hora"`
	Location      *string       `json:"lugar"`
	Result        *string       `json:"resultado"`
	ReportPresent bool          `json:"informe_presente"`
	Warnings      []string      `json:"advertencias"`
	Page          int           `json:"numero_hoja"`
	Sessions      int           `json:"sesiones,omitempty"`
}

// StudyCounts tallies studies per category.
type StudyCounts struct {
	Total      int `json:"total"`
	Imaging    int `json:"imagenes"`
	Laboratory int `json:"laboratorio"`
	Procedures int `json:"procedimientos"`
	Therapy    int `json:"kinesiologia"`
}

// Communication is a routed notification derived from findings.
type Communication struct {
	Sector      string   `json:"sector"`
	Responsible string   `json:"responsable"`
	Motive      string   `json:"motivo"`
	Urgency     Urgency  `json:"urgencia"`
	Errors      []string `json:"errores"`
	Message     string   `json:"mensaje"`
	License     string   `json:"matricula,omitempty"`
}

// Result is the complete audit of one document.
type Result struct {
	FileName        string          `json:"nombreArchivo"`
	Patient         Patient         `json:"datosPaciente"`
	AdmissionDate   time.Time       `json:"fechaIngreso"`
	DischargeDate   *time.Time      `json:"fechaAlta"`
	Admitted        bool            `json:"pacienteInternado"`
	HospitalDays    int             `json:"diasHospitalizacion"`
	AdmissionErrors []string        `json:"erroresAdmision"`
	ProgressErrors  []string        `json:"erroresEvolucion"`
	ProgressDays    []DayCoverage   `json:"evolucionesPorDia"`
	Warnings        []Warning       `json:"advertencias"`
	DischargeErrors []string        `json:"erroresAltaMedica"`
	SummaryErrors   []string        `json:"erroresEpicrisis"`
	SurgicalErrors  []string        `json:"erroresFoja"`
	Surgical        SurgicalRecord  `json:"resultadosFoja"`
	Staff           Staff           `json:"doctores"`
	Studies         []Study         `json:"estudios"`
	StudyCounts     StudyCounts     `json:"estudiosConteo"`
	StudyErrors     []string        `json:"erroresEstudios"`
	TherapySessions int             `json:"sesionesKinesiologia"`
	Communications  []Communication `json:"comunicaciones"`
	TotalErrors     int             `json:"totalErrores"`
	Status          Status          `json:"estado"`
}
