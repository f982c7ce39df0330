package notification

import (
	"fmt"
	"strings"
)

// Directory maps sectors to the phone numbers that receive their messages.
type Directory struct {
	fallback string
	sectors  map[string]string
}

// NewDirectory builds a directory. fallback receives sectors with no entry.
func NewDirectory(fallback string, sectors map[string]string) *Directory {
	d := &Directory{fallback: strings.TrimSpace(fallback), sectors: map[string]string{}}
	for k, v := range sectors {
		d.sectors[normalizeSector(k)] = strings.TrimSpace(v)
	}
	return d
}

// ParseSectorPhones reads "Sector=+549...,Otro sector=+549..." lists.
func ParseSectorPhones(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		sector, phone, ok := strings.Cut(pair, "=")
		sector, phone = strings.TrimSpace(sector), strings.TrimSpace(phone)
		if !ok || sector == "" || phone == "" {
			return nil, fmt.Errorf("invalid sector phone entry %q", pair)
		}
		out[sector] = phone
	}
	return out, nil
}

// Lookup returns the recipient for sector.
func (d *Directory) Lookup(sector string) (string, bool) {
	if phone, ok := d.sectors[normalizeSector(sector)]; ok && phone != "" {
		return phone, true
	}
	return d.fallback, d.fallback != ""
}

func normalizeSector(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
