package diagrams

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// FixMojibake repairs UTF-8 text that was decoded as Latin-1 somewhere on
// the way in ("JosÃ©" becomes "José"). Strings without the telltale lead
// characters, or that do not round-trip cleanly, are returned unchanged.
func FixMojibake(s string) string {
	if !strings.ContainsAny(s, "ÃÅÂ") {
		return s
	}
	raw, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil || !utf8.ValidString(raw) {
		return s
	}
	return raw
}
