package scanner

import (
	"regexp"
	"strings"
)

var (
	storageMacroOpen = regexp.MustCompile(`(?i)<ac:structured-macro[^>]*ac:name="` + regexp.QuoteMeta(MacroKey) + `"`)
	storageMacro     = regexp.MustCompile(`(?is)<ac:structured-macro[^>]*ac:name="` + regexp.QuoteMeta(MacroKey) + `"[^>]*>(.*?)</ac:structured-macro>`)
	storageParam     = regexp.MustCompile(`(?is)<ac:parameter[^>]*ac:name="` + regexp.QuoteMeta(NameParam) + `"[^>]*>(.*?)</ac:parameter>`)
)

// entities are decoded in this order, one pass each.
var entities = [][2]string{
	{"&amp;", "&"},
	{"&lt;", "<"},
	{"&gt;", ">"},
	{"&quot;", `"`},
	{"&#39;", "'"},
}

func decodeEntities(s string) string {
	for _, e := range entities {
		s = strings.ReplaceAll(s, e[0], e[1])
	}
	return s
}

// scanStorage collects diagram names from a storage-format (XHTML) body.
// found reports whether any diagram macro tag is present, named or not.
func scanStorage(body string, names map[string]struct{}) (found bool) {
	found = storageMacroOpen.MatchString(body)
	for _, m := range storageMacro.FindAllStringSubmatch(body, -1) {
		p := storageParam.FindStringSubmatch(m[1])
		if p == nil {
			continue
		}
		if name := decodeEntities(strings.TrimSpace(p[1])); name != "" {
			names[name] = struct{}{}
		}
	}
	return found
}
