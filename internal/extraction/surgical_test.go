package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const surgicalSection = `FOJA QUIRÚRGICA
Fecha: 02/03/2024
Cirujano: PEREZ JUAN
Primer ayudante: LOPEZ ANA
Instrumentador: PEREZ JUAN
Anestesista: RUIZ CARLOS
Hora comienzo: 10:15
Hora finalización: 11:40
Uso de bisturí armónico: SI`

func TestAnalyzeSurgicalRecord(t *testing.T) {
	rec := AnalyzeSurgicalRecord(surgicalSection, true)

	assert.Equal(t, DeviceUsed, rec.Device)
	require.NotNil(t, rec.Date)
	assert.Equal(t, "02/03/2024", *rec.Date)
	require.NotNil(t, rec.StartTime)
	assert.Equal(t, "10:15", *rec.StartTime)
	require.NotNil(t, rec.EndTime)
	assert.Equal(t, "11:40", *rec.EndTime)

	assert.Equal(t, []TeamMember{
		{Role: RoleSurgeon, Name: "PEREZ JUAN"},
		{Role: RoleFirstAssistant, Name: "LOPEZ ANA"},
		{Role: RoleAnesthesiologist, Name: "RUIZ CARLOS"},
		{Role: RoleInstrumentalist, Name: "PEREZ JUAN"},
	}, rec.Team)

	assert.Equal(t, []string{
		"❌ CRÍTICO: El cirujano y el instrumentador tienen el mismo nombre: PEREZ JUAN. Deben ser diferentes.",
	}, rec.Errors)
}

func TestAnalyzeSurgicalRecordMissingTimes(t *testing.T) {
	rec := AnalyzeSurgicalRecord("Protocolo operatorio\nCirujano: SOSA RAUL\nBisturí armónico: no", true)

	assert.Equal(t, DeviceNotUsed, rec.Device)
	assert.Equal(t, []string{ErrNoStartTime, WarnNoEndTime}, rec.Errors)
}

func TestAnalyzeSurgicalRecordStartWithoutDate(t *testing.T) {
	rec := AnalyzeSurgicalRecord("Parte quirúrgico\nHora de inicio: 09:00\nHora fin: 10:00", true)

	assert.Equal(t, DeviceUndetermined, rec.Device)
	assert.Equal(t, []string{ErrNoSurgeryDate}, rec.Errors)
}

func TestAnalyzeSurgicalRecordWithoutHeader(t *testing.T) {
	t.Run("enough indicators", func(t *testing.T) {
		rec := AnalyzeSurgicalRecord("Fecha: 02/03/2024\nCirujano: SOSA RAUL\nHora comienzo: 08:30\nHora fin: 09:30", true)
		assert.Empty(t, rec.Errors)
		assert.Equal(t, []TeamMember{{Role: RoleSurgeon, Name: "SOSA RAUL"}}, rec.Team)
	})
	t.Run("missing and required", func(t *testing.T) {
		rec := AnalyzeSurgicalRecord("Paciente clínico sin cirugía", true)
		assert.Equal(t, []string{ErrNoSurgicalRecord}, rec.Errors)
	})
	t.Run("missing and optional", func(t *testing.T) {
		rec := AnalyzeSurgicalRecord("Paciente clínico sin cirugía", false)
		assert.Empty(t, rec.Errors)
		assert.Empty(t, rec.Team)
	})
}

func TestGenericAssistantExcludesQualifiedRoles(t *testing.T) {
	team := surgicalTeam("Primer ayudante: LOPEZ ANA\nAyudante residencia: DIAZ EVA\nAyudante: MORA LUIS")

	assert.Equal(t, []TeamMember{
		{Role: RoleFirstAssistant, Name: "LOPEZ ANA"},
		{Role: RoleResidentAssistant, Name: "DIAZ EVA"},
		{Role: RoleAssistant, Name: "MORA LUIS"},
	}, team)
}

func TestValidateTeamPairs(t *testing.T) {
	team := []TeamMember{
		{Role: RoleInstrumentalist, Name: "perez juan "},
		{Role: RoleSurgeon, Name: "PEREZ JUAN"},
		{Role: RoleAnesthesiologist, Name: "PEREZ JUAN"},
		{Role: RoleAssistant, Name: "PEREZ JUAN"},
	}
	errs := ValidateTeam(team)

	assert.Len(t, errs, 3)
	assert.Contains(t, errs, "❌ CRÍTICO: El cirujano y el instrumentador tienen el mismo nombre: PEREZ JUAN. Deben ser diferentes.")
	assert.Contains(t, errs, "❌ CRÍTICO: El instrumentador y el anestesista tienen el mismo nombre: PEREZ JUAN. Deben ser diferentes.")
	assert.Empty(t, ValidateTeam([]TeamMember{{Role: RoleSurgeon, Name: "A B C"}, {Role: RoleAnesthesiologist, Name: "D E F"}}))
}

func TestPersonName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"PEREZ JUAN", "PEREZ JUAN", true},
		{"Dr. PEREZ JUAN MP 12345", "PEREZ JUAN", true},
		{"DRA GOMEZ, ANA Primer Ayudante: LOPEZ", "GOMEZ, ANA", true},
		{"SOSA RAUL\nAnestesista: RUIZ", "SOSA RAUL", true},
		{"ROMERO LUIS Hora: 10:00", "ROMERO LUIS", true},
		{"Dr.", "", false},
		{"AB", "", false},
	}
	for _, tt := range tests {
		got, ok := PersonName(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}
