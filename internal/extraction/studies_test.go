package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractStudiesMissingReport(t *testing.T) {
	rep := ExtractStudies("TAC de tórax 10/03/2024 — sin informe")

	require.Len(t, rep.Studies, 1)
	s := rep.Studies[0]
	assert.Equal(t, CategoryImaging, s.Category)
	assert.Equal(t, "TAC de tórax", s.Type)
	assert.False(t, s.ReportPresent)
	assert.Equal(t, []string{WarnNoReport}, s.Warnings)
	require.NotNil(t, s.Date)
	assert.Equal(t, "10/03/2024", *s.Date)
	assert.Equal(t, []string{"Estudio sin informe: [Imagenes] TAC de tórax (10/03/2024) (Hoja 1)"}, rep.Errors)
}

func TestExtractStudiesPagesAndTherapy(t *testing.T) {
	text := `Página 1 de 2
TAC de tórax 10/03/2024 — sin informe
Hemograma 11/03/2024 resultado: valores dentro de rango normal
Kinesiología respiratoria
TAC de tórax 10/03/2024 informe: sin lesiones
Página 2 de 2
Exámenes complementarios
Ecografía abdominal 01/02/2024
Sesión de kinesioterapia motora`

	rep := ExtractStudies(text)

	require.Len(t, rep.Studies, 3)
	assert.Equal(t, "TAC de tórax", rep.Studies[0].Type)
	assert.Equal(t, 1, rep.Studies[0].Page)

	lab := rep.Studies[1]
	assert.Equal(t, CategoryLaboratory, lab.Category)
	assert.Equal(t, "Hemograma", lab.Type)
	assert.True(t, lab.ReportPresent)
	require.NotNil(t, lab.Result)
	assert.Equal(t, "valores dentro de rango normal", *lab.Result)

	therapy := rep.Studies[2]
	assert.Equal(t, TherapyType, therapy.Type)
	assert.Equal(t, CategoryProcedure, therapy.Category)
	assert.Equal(t, 2, therapy.Sessions)
	assert.True(t, therapy.ReportPresent)

	assert.Equal(t, StudyCounts{Total: 3, Imaging: 1, Laboratory: 1, Procedures: 1, Therapy: 2}, rep.Counts)
	assert.Equal(t, 2, rep.TherapySessions)
	assert.Len(t, rep.Errors, 1)
}

func TestExtractStudiesUndatedWarnings(t *testing.T) {
	rep := ExtractStudies("Se solicita ecocardiograma")

	require.Len(t, rep.Studies, 1)
	assert.Equal(t, "Ecocardiograma", rep.Studies[0].Type)
	assert.Equal(t, []string{WarnNoReport, WarnNoDate}, rep.Studies[0].Warnings)
	assert.Equal(t, []string{"Estudio sin informe: [Procedimientos] Ecocardiograma (Hoja 1)"}, rep.Errors)
}

func TestReportNegation(t *testing.T) {
	for _, line := range []string{
		"Rx de tórax 01/03/2024 pendiente de informe",
		"Rx de tórax 01/03/2024 falta informe",
		"Rx de tórax 01/03/2024 no informado",
		"Rx de tórax 01/03/2024 sin resultado",
	} {
		s := newStudy(CategoryImaging, "Radiografía", line, 1)
		assert.False(t, s.ReportPresent, line)
	}
	s := newStudy(CategoryImaging, "Radiografía", "Rx de tórax 01/03/2024 informe: normal", 1)
	assert.True(t, s.ReportPresent)
}

func TestPCRDoesNotMatchHyphenatedCodes(t *testing.T) {
	assert.Empty(t, ExtractStudies("Protocolo PCR-2024 archivado").Studies)
	assert.Len(t, ExtractStudies("PCR 12/03/2024 resultado: 3 mg/l elevada").Studies, 1)
}
