package extraction

import (
	"strings"
	"unicode/utf8"
)

// NameNoiseWords end a captured person name. Labels of neighbouring fields
// often share the line with the name they follow.
var NameNoiseWords = []string{
	"PRIMER", "AYUDANTE", "ANESTESISTA", "ANESTESIOLOGO", "ANESTESIOLOGA",
	"INSTRUMENTADOR", "INSTRUMENTADORA", "CIRUJANO", "CIRUJANA", "RESIDENCIA",
	"MP", "MN", "MATRICULA", "HORA", "FECHA", "DNI",
}

var namePrefixes = map[string]bool{"DR": true, "DRA": true, "DR/A": true}

var accentFold = strings.NewReplacer(
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ü", "U",
	"á", "A", "é", "E", "í", "I", "ó", "O", "ú", "U", "ü", "U",
)

func foldWord(w string) string {
	return accentFold.Replace(strings.ToUpper(strings.Trim(w, ".,:;")))
}

func isNoiseWord(w string) bool {
	f := foldWord(w)
	for _, n := range NameNoiseWords {
		if f == n {
			return true
		}
	}
	return false
}

// PersonName cleans a raw capture that follows a role label: it keeps the
// first line, drops a leading title, and cuts at the first noise word.
func PersonName(raw string) (string, bool) {
	if i := strings.IndexByte(raw, '\n'); i >= 0 {
		raw = raw[:i]
	}
	words := strings.Fields(raw)
	for len(words) > 0 && namePrefixes[foldWord(words[0])] {
		words = words[1:]
	}
	kept := words[:0:0]
	for _, w := range words {
		if isNoiseWord(w) || (strings.ContainsRune(w, ':') && isNoiseWord(strings.SplitN(w, ":", 2)[0])) {
			break
		}
		kept = append(kept, w)
	}
	name := strings.Trim(strings.Join(kept, " "), " ,.:;-")
	if utf8.RuneCountInString(name) < 3 {
		return "", false
	}
	return name, true
}

// normalizedName is the comparison key of the surgical-team uniqueness check.
func normalizedName(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
