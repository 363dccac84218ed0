// Package scanner extracts the diagram names referenced by a page's macros.
package scanner

import (
	"context"
	"sort"

	"github.com/flowme-cloud/flowme-backend/internal/confluence"
	"github.com/flowme-cloud/flowme-backend/internal/logging"
)

const (
	// MacroKey is the extension key the diagram macro is registered under.
	MacroKey = "flowmecloud-diagram"
	// NameParam is the macro parameter holding the diagram name.
	NameParam = "diagramName"
)

// PageSource fetches both body encodings of a page.
type PageSource interface {
	PageStorageBody(ctx context.Context, id confluence.Identity, pageID string) (string, error)
	PageADFBody(ctx context.Context, id confluence.Identity, pageID string) ([]byte, error)
}

// Result is the outcome of scanning one page.
type Result struct {
	Names map[string]struct{}
	// MacroFound is true when at least one diagram macro exists in either body.
	MacroFound bool
	// OK is false only when neither body could be read. A failed scan must
	// never be read as "nothing referenced".
	OK bool
}

// Has reports whether name is referenced on the page.
func (r Result) Has(name string) bool {
	_, ok := r.Names[name]
	return ok
}

// SortedNames returns the referenced names in order.
func (r Result) SortedNames() []string {
	out := make([]string, 0, len(r.Names))
	for n := range r.Names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Scanner reads page content as the app identity.
type Scanner struct {
	source PageSource
}

func New(source PageSource) *Scanner {
	return &Scanner{source: source}
}

// Scan fetches both encodings of the page and merges the names found.
func (s *Scanner) Scan(ctx context.Context, pageID string) Result {
	logger := logging.NewLogger(ctx)
	res := Result{Names: make(map[string]struct{})}

	storageOK := true
	body, err := s.source.PageStorageBody(ctx, confluence.AsApp, pageID)
	if err != nil {
		storageOK = false
		logger.LogWarnf("scan_storage", "storage body unavailable page_id=%s: %v", pageID, err)
	} else if scanStorage(body, res.Names) {
		res.MacroFound = true
	}

	adfOK := true
	raw, err := s.source.PageADFBody(ctx, confluence.AsApp, pageID)
	if err != nil {
		adfOK = false
		logger.LogWarnf("scan_adf", "adf body unavailable page_id=%s: %v", pageID, err)
	} else if len(raw) == 0 {
		adfOK = false
		logger.LogWarnf("scan_adf", "adf body empty page_id=%s", pageID)
	} else {
		doc, perr := ParseADF(raw)
		if perr != nil {
			adfOK = false
			logger.LogWarnf("scan_adf", "adf body unreadable page_id=%s: %v", pageID, perr)
		} else if scanADF(doc, res.Names) {
			res.MacroFound = true
		}
	}

	res.OK = storageOK || adfOK
	logger.LogInfof("scan", "page_id=%s ok=%t macro_found=%t names=%d", pageID, res.OK, res.MacroFound, len(res.Names))
	return res
}
