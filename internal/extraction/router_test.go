package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestRoutePrecedenceAndUrgency(t *testing.T) {
	f := Findings{
		Admission:        []string{ErrPatientID},
		Progress:         []string{"❌ CRÍTICO: 02/03/2024 - Falta 'Evolución médica diaria'"},
		Warnings:         []Warning{{Type: WarnTypeDischargeDay, Description: "aviso"}},
		DischargeNote:    []string{ErrMissingDischargeNote},
		DischargeSummary: []string{ErrMissingDischargeSummary},
		Surgical:         SurgicalRecord{Device: DeviceUsed, Errors: []string{ErrNoStartTime}},
		Studies: []Study{
			{Category: CategoryLaboratory, Type: "Hemograma"},
			{Category: CategoryImaging, Type: "TAC de tórax", Date: strp("10/03/2024")},
			{Category: CategoryProcedure, Type: "Colonoscopía"},
			{Category: CategoryProcedure, Type: TherapyType, ReportPresent: true, Sessions: 3},
		},
		StudyErrors: []string{"Estudio sin informe: [Imagenes] TAC de tórax (10/03/2024) (Hoja 1)"},
	}

	comms := Route(f)

	type row struct {
		sector  string
		urgency Urgency
	}
	got := make([]row, 0, len(comms))
	for _, c := range comms {
		got = append(got, row{c.Sector, c.Urgency})
	}
	assert.Equal(t, []row{
		{SectorAdmission, UrgencyHigh},
		{SectorResidents, UrgencyHigh},
		{SectorResidents, UrgencyMedium},
		{SectorSurgery, UrgencyCritical},
		{SectorSurgery, UrgencyCritical},
		{SectorSurgery, UrgencyHigh},
		{SectorSurgery, UrgencyCritical},
		{SectorImaging, UrgencyHigh},
		{SectorLaboratory, UrgencyMedium},
		{SectorProcedures, UrgencyHigh},
		{SectorRecords, UrgencyMedium},
	}, got)

	assert.Equal(t, []string{"[Imagenes] TAC de tórax (10/03/2024)"}, comms[7].Errors)
	assert.Equal(t, "Faltan informes en: TAC de tórax (10/03/2024). Adjuntar antes del envío a OSDE.", comms[7].Message)
	assert.Equal(t, []string{"[Procedimientos] Colonoscopía"}, comms[9].Errors)
	assert.Equal(t, []string{"aviso"}, comms[2].Errors)
}

func TestRouteResponsibleResolution(t *testing.T) {
	staff := Staff{
		Residents: []Doctor{{Name: "MARTINEZ PABLO", License: "45678"}, {Name: "MARTINEZ PABLO", License: "45678"}, {Name: "DIAZ EVA", License: "111"}},
	}

	comms := Route(Findings{
		Progress:      []string{"x"},
		DischargeNote: []string{ErrMissingDischargeNote},
		Staff:         staff,
	})
	require.Len(t, comms, 2)

	assert.Equal(t, "Dr/a MARTINEZ PABLO, Dr/a DIAZ EVA", comms[0].Responsible)
	assert.Equal(t, "45678, 111", comms[0].License)
	assert.Equal(t, "Cirujano Responsable", comms[1].Responsible)
	assert.Empty(t, comms[1].License)
}

func TestRouteCleanRecord(t *testing.T) {
	assert.Empty(t, Route(Findings{}))
}
