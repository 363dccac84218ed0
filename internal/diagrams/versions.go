package diagrams

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/flowme-cloud/flowme-backend/internal/confluence"
	"github.com/flowme-cloud/flowme-backend/internal/logging"
)

const (
	maxVersions      = 50
	maxAuthorLookups = 8
)

var savedByPattern = regexp.MustCompile(`(?i)savedBy:([^|]+)`)

// VersionInfo is one entry of a diagram's history.
type VersionInfo struct {
	Number int    `json:"number"`
	When   string `json:"when,omitempty"`
	By     string `json:"by"`
}

type rawVersion struct {
	info     VersionInfo
	authorID string
}

// ListVersions returns up to 50 versions of a diagram in the order the host
// sends them. The source file's history is preferred over the render's.
func (s *Service) ListVersions(ctx context.Context, pageID, name string) ([]VersionInfo, error) {
	logger := logging.NewLogger(ctx)
	if err := ValidateName(pageID, name); err != nil {
		return nil, err
	}
	res, err := s.Resolve(ctx, pageID, name)
	if err != nil {
		return nil, err
	}

	attachmentID := ""
	switch {
	case res.Source != nil && res.Source.ID != "":
		attachmentID = res.Source.ID
	case res.Render != nil && res.Render.ID != "":
		attachmentID = res.Render.ID
	}
	if attachmentID == "" {
		logger.LogInfof("list_versions", "no attachment page_id=%s name=%s", pageID, name)
		return []VersionInfo{}, nil
	}

	records, err := s.host.ListAttachmentVersions(ctx, confluence.AsApp, attachmentID, maxVersions)
	if err != nil {
		return nil, err
	}

	raws := make([]rawVersion, 0, len(records))
	var missing []string
	seen := make(map[string]struct{})
	for _, rec := range records {
		if rec.Number == 0 {
			continue
		}
		rv := deriveVersion(rec)
		if rv.info.By == "" && rv.authorID != "" {
			if _, ok := seen[rv.authorID]; !ok {
				seen[rv.authorID] = struct{}{}
				missing = append(missing, rv.authorID)
			}
		}
		raws = append(raws, rv)
	}

	names := s.lookupAuthors(ctx, missing)

	out := make([]VersionInfo, len(raws))
	for i, rv := range raws {
		if rv.info.By == "" && rv.authorID != "" {
			rv.info.By = names[rv.authorID]
		}
		out[i] = rv.info
	}
	logger.LogInfof("list_versions", "page_id=%s name=%s count=%d", pageID, name, len(out))
	return out, nil
}

// deriveVersion picks the author from the savedBy token first, then the
// host's author record.
func deriveVersion(rec confluence.VersionRecord) rawVersion {
	var author *confluence.UserRef
	for _, u := range []*confluence.UserRef{rec.CreatedBy, rec.By, rec.Author, rec.User} {
		if u != nil {
			author = u
			break
		}
	}

	authorID := firstNonEmpty(accountIDOf(author), rec.AuthorID, rec.UserID)
	displayName := ""
	if author != nil {
		displayName = firstNonEmpty(author.DisplayName, author.PublicName)
	}

	comment := firstNonEmpty(rec.Message, rec.Comment)
	if comment == "" && rec.Version != nil {
		comment = rec.Version.Message
	}

	return rawVersion{
		info: VersionInfo{
			Number: rec.Number,
			When:   firstNonEmpty(rec.CreatedAt, rec.When),
			By:     firstNonEmpty(SavedBy(comment), displayName),
		},
		authorID: authorID,
	}
}

// SavedBy extracts the author recorded in a provenance comment.
func SavedBy(comment string) string {
	m := savedByPattern.FindStringSubmatch(comment)
	if m == nil {
		return ""
	}
	return FixMojibake(strings.TrimSpace(m[1]))
}

func accountIDOf(u *confluence.UserRef) string {
	if u == nil {
		return ""
	}
	return u.AccountID
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// lookupAuthors resolves display names for account IDs concurrently. Cached
// names are reused and failed lookups are left out.
func (s *Service) lookupAuthors(ctx context.Context, ids []string) map[string]string {
	names := make(map[string]string, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxAuthorLookups)
	for _, id := range ids {
		id := id
		if name, ok := s.authors.Get(id); ok {
			mu.Lock()
			names[id] = name
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			u, err := s.host.UserByAccountID(gctx, confluence.AsApp, id)
			if err != nil || u == nil || u.DisplayName == "" {
				return nil
			}
			s.authors.Add(id, u.DisplayName)
			mu.Lock()
			names[id] = u.DisplayName
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return names
}
