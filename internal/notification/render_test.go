package notification

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drfirst/go-chartaudit/internal/domain/audit"
	"github.com/drfirst/go-chartaudit/internal/extraction"
)

func sampleCommunication() extraction.Communication {
	return extraction.Communication{
		Sector:      extraction.SectorResidents,
		Responsible: "Dr/a MARTINEZ PABLO",
		License:     "45678",
		Motive:      "Falta evolución médica diaria",
		Urgency:     extraction.UrgencyCritical,
		Errors:      []string{"02/03/2024", "03/03/2024"},
		Message:     "Completar las evoluciones faltantes.",
	}
}

func TestRender(t *testing.T) {
	text := Render(sampleCommunication(), audit.PatientSummary{Name: "GOMEZ MARIA", NationalID: "28456789"}, "gomez.pdf", "")

	lines := strings.Split(text, "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "🚨 NOTIFICACIÓN DE AUDITORÍA MÉDICA 🚨", lines[0])
	assert.Contains(t, text, "👤 Responsable: Dr/a MARTINEZ PABLO\n📋 Matrícula: 45678\n")
	assert.Contains(t, text, "• Nombre: GOMEZ MARIA\n")
	assert.Contains(t, text, "• Obra Social: No encontrada\n")
	assert.Contains(t, text, "• Archivo: gomez.pdf\n")
	assert.Contains(t, text, "❌ Errores Detectados:\n1. 02/03/2024\n2. 03/03/2024\n")
	assert.Contains(t, text, "📝 Acción Requerida:\nCompletar las evoluciones faltantes.")
	assert.True(t, strings.HasSuffix(text, DefaultFooter))
}

func TestRenderOmitsEmptySections(t *testing.T) {
	c := sampleCommunication()
	c.License = ""
	c.Errors = nil
	c.Urgency = extraction.UrgencyMedium

	text := Render(c, audit.PatientSummary{}, "a.pdf", "Hospital X")

	assert.True(t, strings.HasPrefix(text, "📋 NOTIFICACIÓN"))
	assert.NotContains(t, text, "Matrícula")
	assert.NotContains(t, text, "Errores Detectados")
	assert.Contains(t, text, "• DNI: No encontrado\n")
	assert.True(t, strings.HasSuffix(text, "Hospital X"))
}

func TestDirectory(t *testing.T) {
	phones, err := ParseSectorPhones(" Residentes=+5491100000001 , Cirugía=+5491100000002,")
	require.NoError(t, err)
	assert.Len(t, phones, 2)

	d := NewDirectory("+5491100000000", phones)

	to, ok := d.Lookup("residentes")
	assert.True(t, ok)
	assert.Equal(t, "+5491100000001", to)

	to, ok = d.Lookup(extraction.SectorLaboratory)
	assert.True(t, ok)
	assert.Equal(t, "+5491100000000", to)

	_, ok = NewDirectory("", nil).Lookup(extraction.SectorLaboratory)
	assert.False(t, ok)

	_, err = ParseSectorPhones("Residentes")
	assert.Error(t, err)
}
