package extraction

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPatient(t *testing.T) {
	text := Normalize(`SANATORIO CENTRAL
Nombre: GOMEZ MARIA LAURA
DNI: 28.456.789
Fecha de nacimiento: 12/05/1980
Sexo: F
Obra social: OSDE
Habitación: 305`)

	p := ExtractPatient(text)

	assert.Equal(t, "GOMEZ MARIA LAURA", p.Name)
	assert.Equal(t, "28456789", p.NationalID)
	assert.Equal(t, "12/05/1980", p.BirthDate)
	assert.Equal(t, "Femenino", p.Sex)
	assert.Equal(t, "OSDE", p.Insurer)
	assert.Equal(t, "305", p.Room)
	assert.False(t, p.IntensiveCare)
	assert.Empty(t, p.AdmissionErrors)
}

func TestExtractPatientMissingFields(t *testing.T) {
	p := ExtractPatient("informe sin datos filiatorios")

	assert.Equal(t, []string{ErrPatientName, ErrPatientID, ErrBirthDate, ErrPatientSex}, p.AdmissionErrors)
	assert.Empty(t, p.Insurer)
	assert.Empty(t, p.Room)

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"obra_social":"No encontrada"`)
	assert.Contains(t, string(b), `"habitacion":"No encontrada"`)
}

func TestPatientDecodeDropsSentinels(t *testing.T) {
	b, err := json.Marshal(Patient{Name: "PEREZ JUAN", Room: "305"})
	require.NoError(t, err)

	var p Patient
	require.NoError(t, json.Unmarshal(b, &p))
	assert.Equal(t, "PEREZ JUAN", p.Name)
	assert.Empty(t, p.Insurer)
	assert.Equal(t, "305", p.Room)
	assert.Equal(t, []string{}, p.AdmissionErrors)

	require.NoError(t, json.Unmarshal([]byte(`{"obra_social":"OSDE","habitacion":"No encontrada"}`), &p))
	assert.Equal(t, "OSDE", p.Insurer)
	assert.Empty(t, p.Room)
}

func TestCanonicalSex(t *testing.T) {
	assert.Equal(t, "Masculino", canonicalSex("M"))
	assert.Equal(t, "Masculino", canonicalSex("masculino"))
	assert.Equal(t, "Femenino", canonicalSex("f"))
	assert.Equal(t, "Mujer", canonicalSex("MUJER"))
}

func TestRoomPrefersBoxOverGenericLabel(t *testing.T) {
	text := "Nombre: ROJAS ANA\nSala: 4\n" + strings.Repeat("control\n", 200) + "Ubicación actual box 7\nCAJA 2 pago registrado"
	p := ExtractPatient(text)
	assert.Equal(t, "BOX 7", p.Room)
}

func TestRoomFallsBackToWholeDocument(t *testing.T) {
	text := "Nombre: ROJAS ANA\n" + strings.Repeat("control\n", 200) + "Habitación: 12B\nCAJA 3"
	p := ExtractPatient(text)
	assert.Equal(t, "12B", p.Room)
}

func TestIntensiveCareDetection(t *testing.T) {
	t.Run("room label", func(t *testing.T) {
		assert.True(t, isIntensiveCare("UTI 3", ""))
	})
	t.Run("placement context", func(t *testing.T) {
		assert.True(t, isIntensiveCare("", "Servicio: UTI adultos\nCama 4"))
	})
	t.Run("narrative mention", func(t *testing.T) {
		assert.False(t, isIntensiveCare("", "Antecedentes: estuvo en terapia intensiva hace diez años por neumonía."))
	})
}
