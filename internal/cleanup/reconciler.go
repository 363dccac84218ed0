// Package cleanup removes diagram attachments no page macro refers to.
package cleanup

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowme-cloud/flowme-backend/internal/confluence"
	"github.com/flowme-cloud/flowme-backend/internal/logging"
	"github.com/flowme-cloud/flowme-backend/internal/metrics"
	"github.com/flowme-cloud/flowme-backend/internal/scanner"
)

const (
	// ProvenanceMarker prefixes the comment of every attachment this service writes.
	ProvenanceMarker = "FlowMe diagram:"
	SourceSuffix     = ".mxfile"
	RenderSuffix     = ".svg"
)

// Outcome says how a reconcile run ended.
type Outcome string

const (
	OutcomeListFailed      Outcome = "list_failed"
	OutcomeNoCandidates    Outcome = "no_candidates"
	OutcomeScanFailed      Outcome = "scan_failed"
	OutcomeDraftInProgress Outcome = "draft_in_progress"
	OutcomeSuspiciousEmpty Outcome = "suspicious_empty"
	OutcomeReconciled      Outcome = "reconciled"
	OutcomeDeleteFailed    Outcome = "delete_failed"
)

// Result tallies one reconcile run.
type Result struct {
	PageID     string  `json:"pageId"`
	Outcome    Outcome `json:"outcome"`
	Total      int     `json:"total"`
	Candidates int     `json:"candidates"`
	Kept       int     `json:"kept"`
	Deleted    int     `json:"deleted"`
}

// Host is the subset of the wiki client the reconciler needs.
type Host interface {
	ListAttachments(ctx context.Context, id confluence.Identity, pageID string) ([]confluence.Attachment, error)
	Delete(ctx context.Context, id confluence.Identity, attachmentID string) error
	HasDraft(ctx context.Context, id confluence.Identity, pageID string) bool
}

// PageScanner reports the diagram names referenced on a page.
type PageScanner interface {
	Scan(ctx context.Context, pageID string) scanner.Result
}

// Reconciler deletes orphaned diagram attachments. Every uncertain state
// leaves the page untouched.
type Reconciler struct {
	host    Host
	scanner PageScanner
	audit   AuditSink
}

// NewReconciler builds a reconciler. audit may be nil.
func NewReconciler(host Host, scan PageScanner, audit AuditSink) *Reconciler {
	if audit == nil {
		audit = nopAudit{}
	}
	return &Reconciler{host: host, scanner: scan, audit: audit}
}

type candidate struct {
	id   string
	name string
}

// diagramName returns the name a managed attachment belongs to, or false
// when the attachment is not a deletion candidate.
func diagramName(att confluence.Attachment) (string, bool) {
	if att.Title == "" || !strings.HasPrefix(att.Comment, ProvenanceMarker) {
		return "", false
	}
	for _, suffix := range []string{SourceSuffix, RenderSuffix} {
		if strings.HasSuffix(att.Title, suffix) {
			return strings.TrimSuffix(att.Title, suffix), true
		}
	}
	return "", false
}

// Reconcile runs one cleanup pass over a page. All reads and deletes act as
// the app identity. A delete failure stops the pass and is returned together
// with the tally so far.
func (r *Reconciler) Reconcile(ctx context.Context, pageID string) (res Result, err error) {
	logger := logging.NewLogger(ctx)
	res = Result{PageID: pageID}
	defer func() {
		r.audit.Record(ctx, res, err)
		metrics.RecordCleanupRun(res.Deleted)
		logger.LogInfof("reconcile", "page_id=%s outcome=%s total=%d candidates=%d kept=%d deleted=%d",
			pageID, res.Outcome, res.Total, res.Candidates, res.Kept, res.Deleted)
	}()

	attachments, err := r.host.ListAttachments(ctx, confluence.AsApp, pageID)
	if err != nil {
		res.Outcome = OutcomeListFailed
		return res, fmt.Errorf("list attachments: %w", err)
	}
	res.Total = len(attachments)

	var candidates []candidate
	for _, att := range attachments {
		if name, ok := diagramName(att); ok {
			candidates = append(candidates, candidate{id: att.ID, name: name})
		}
	}
	res.Candidates = len(candidates)
	if len(candidates) == 0 {
		res.Outcome = OutcomeNoCandidates
		return res, nil
	}

	scan := r.scanner.Scan(ctx, pageID)
	if !scan.OK {
		res.Outcome = OutcomeScanFailed
		return res, nil
	}
	if !scan.MacroFound && len(scan.Names) == 0 && r.host.HasDraft(ctx, confluence.AsApp, pageID) {
		res.Outcome = OutcomeDraftInProgress
		return res, nil
	}
	if scan.MacroFound && len(scan.Names) == 0 {
		res.Outcome = OutcomeSuspiciousEmpty
		return res, nil
	}

	for _, c := range candidates {
		if scan.Has(c.name) {
			res.Kept++
			continue
		}
		if c.id == "" {
			continue
		}
		if err := r.host.Delete(ctx, confluence.AsApp, c.id); err != nil {
			res.Outcome = OutcomeDeleteFailed
			return res, fmt.Errorf("delete attachment %s: %w", c.id, err)
		}
		res.Deleted++
	}
	res.Outcome = OutcomeReconciled
	return res, nil
}
