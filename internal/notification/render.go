// Package notification renders audit communications and delivers them
// through an outbound messaging gateway exactly once per communication.
package notification

import (
	"fmt"
	"strings"

	"github.com/drfirst/go-chartaudit/internal/domain/audit"
	"github.com/drfirst/go-chartaudit/internal/extraction"
)

// DefaultFooter closes every message.
const DefaultFooter = "🤖 Automatización realizada por Grow Labs\nSanatorio Argentino - Sistema Salus"

const billingReminder = "⚕️ Importante: Es necesario completar esta corrección antes del envío a OSDE para evitar débitos en la facturación."

func urgencyMark(u extraction.Urgency) string {
	switch u {
	case extraction.UrgencyCritical:
		return "🚨"
	case extraction.UrgencyHigh:
		return "⚠️"
	}
	return "📋"
}

// Render builds the message text for one communication.
func Render(c extraction.Communication, patient audit.PatientSummary, fileName, footer string) string {
	if footer == "" {
		footer = DefaultFooter
	}
	mark := urgencyMark(c.Urgency)

	var b strings.Builder
	fmt.Fprintf(&b, "%s NOTIFICACIÓN DE AUDITORÍA MÉDICA %s\n\n", mark, mark)
	fmt.Fprintf(&b, "👤 Responsable: %s\n", c.Responsible)
	if c.License != "" {
		fmt.Fprintf(&b, "📋 Matrícula: %s\n", c.License)
	}
	fmt.Fprintf(&b, "🏥 Sector: %s\n", c.Sector)
	fmt.Fprintf(&b, "⚠️ Urgencia: %s\n\n", c.Urgency)
	fmt.Fprintf(&b, "📄 Motivo de la comunicación:\n%s\n\n", c.Motive)

	b.WriteString("👨‍⚕️ Datos del Paciente:\n")
	fmt.Fprintf(&b, "• Nombre: %s\n", orDefault(patient.Name, extraction.NotFoundMale))
	fmt.Fprintf(&b, "• DNI: %s\n", orDefault(patient.NationalID, extraction.NotFoundMale))
	fmt.Fprintf(&b, "• Obra Social: %s\n", orDefault(patient.Insurer, extraction.NotFoundFemale))
	fmt.Fprintf(&b, "• Archivo: %s\n\n", fileName)

	if len(c.Errors) > 0 {
		b.WriteString("❌ Errores Detectados:\n")
		for i, e := range c.Errors {
			fmt.Fprintf(&b, "%d. %s\n", i+1, e)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "📝 Acción Requerida:\n%s\n\n", c.Message)
	b.WriteString(billingReminder)
	b.WriteString("\n\n")
	b.WriteString(footer)
	return b.String()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
