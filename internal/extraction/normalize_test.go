package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	raw := "HISTORIA\tCLINICA \r\nNombre:   GOMEZ  MARIA\f\rPágina 2 de 7\nFecha impresión: 10/03/2024 12:00\n  Sexo: F  "
	got := Normalize(raw)

	assert.Equal(t, "HISTORIA CLINICA\nNombre: GOMEZ MARIA\n\n\nSexo: F", got)
	assert.NotContains(t, got, "\r")
	assert.NotContains(t, got, "Página")
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"a  b\r\nc",
		"Página 1 de 2\nFecha Ingreso: 01/03/2024 08:00\n\f\fVisita 01/03/2024",
		"  \t \n Fecha impresión: hoy\nPAGINA 3 DE 3\n",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalizeKeepPages(t *testing.T) {
	got := normalizeKeepPages("Página 3 de 4\r\nTAC  de tórax")
	assert.Equal(t, "Página 3 de 4\nTAC de tórax", got)
}
