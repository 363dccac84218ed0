package diagrams

import (
	"context"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/flowme-cloud/flowme-backend/internal/confluence"
	"github.com/flowme-cloud/flowme-backend/internal/logging"
)

// Host is the subset of the wiki client diagrams need.
type Host interface {
	ListAttachments(ctx context.Context, id confluence.Identity, pageID string) ([]confluence.Attachment, error)
	FindByName(ctx context.Context, id confluence.Identity, pageID, filename string) (*confluence.Attachment, error)
	Download(ctx context.Context, id confluence.Identity, pageID, attachmentID string, version int) (string, error)
	Upload(ctx context.Context, id confluence.Identity, in confluence.UploadRequest) (*confluence.Attachment, error)
	ListAttachmentVersions(ctx context.Context, id confluence.Identity, attachmentID string, limit int) ([]confluence.VersionRecord, error)
	CurrentUser(ctx context.Context) (*confluence.User, error)
	UserByAccountID(ctx context.Context, id confluence.Identity, accountID string) (*confluence.User, error)
}

const authorCacheSize = 512

// Service loads, saves and lists diagrams. Writes act as the app identity so
// cleanup later recognises them.
type Service struct {
	host    Host
	authors *lru.Cache[string, string]
}

func NewService(host Host) *Service {
	authors, err := lru.New[string, string](authorCacheSize)
	if err != nil {
		panic(fmt.Sprintf("author cache: %v", err))
	}
	return &Service{host: host, authors: authors}
}

// Resolution holds whichever of a diagram's two attachments exist.
type Resolution struct {
	Source *confluence.Attachment
	Render *confluence.Attachment
}

// Exists reports whether either file is present.
func (r Resolution) Exists() bool {
	return r.Source != nil || r.Render != nil
}

// Resolve looks up the source and render files independently.
func (s *Service) Resolve(ctx context.Context, pageID, name string) (Resolution, error) {
	var res Resolution
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		att, err := s.host.FindByName(gctx, confluence.AsApp, pageID, SourceFile(name))
		res.Source = att
		return err
	})
	g.Go(func() error {
		att, err := s.host.FindByName(gctx, confluence.AsApp, pageID, RenderFile(name))
		res.Render = att
		return err
	})
	if err := g.Wait(); err != nil {
		return Resolution{}, err
	}
	return res, nil
}

// Diagram is a loaded diagram. Either part may be missing.
type Diagram struct {
	XML        string `json:"xml"`
	SVG        string `json:"svg"`
	HasXML     bool   `json:"hasXml"`
	HasSVG     bool   `json:"hasSvg"`
	SVGVersion *int   `json:"svgVersion"`
}

// Load downloads whichever parts exist. A non-zero version is applied to
// both downloads.
func (s *Service) Load(ctx context.Context, pageID, name string, version int) (*Diagram, error) {
	if err := ValidateName(pageID, name); err != nil {
		return nil, err
	}
	res, err := s.Resolve(ctx, pageID, name)
	if err != nil {
		return nil, err
	}

	d := &Diagram{}
	if res.Source != nil && res.Source.ID != "" {
		d.XML, err = s.host.Download(ctx, confluence.AsApp, parentOf(res.Source, pageID), res.Source.ID, version)
		if err != nil {
			return nil, err
		}
	}
	if res.Render != nil && res.Render.ID != "" {
		d.SVG, err = s.host.Download(ctx, confluence.AsApp, parentOf(res.Render, pageID), res.Render.ID, version)
		if err != nil {
			return nil, err
		}
		switch {
		case version > 0:
			v := version
			d.SVGVersion = &v
		case res.Render.Version != nil:
			v := res.Render.Version.Number
			d.SVGVersion = &v
		}
	}
	d.HasXML = d.XML != ""
	d.HasSVG = d.SVG != ""
	return d, nil
}

func parentOf(att *confluence.Attachment, pageID string) string {
	if att.PageID != "" {
		return att.PageID
	}
	return pageID
}

// SaveRequest is one save from the editor.
type SaveRequest struct {
	PageID     string
	Name       string
	XML        string
	SVG        string
	CreateOnly bool
}

// Save uploads the supplied parts concurrently. With CreateOnly set an
// existing diagram of the same name yields ErrConflict and nothing is
// written. The save fails if any upload fails.
func (s *Service) Save(ctx context.Context, req SaveRequest) error {
	logger := logging.NewLogger(ctx)
	if err := ValidateName(req.PageID, req.Name); err != nil {
		return err
	}
	xml := NormalizeXML(req.XML)
	svg, err := NormalizeSVG(req.SVG)
	if err != nil {
		return err
	}
	if xml == "" && svg == "" {
		return ErrNoContent
	}

	if req.CreateOnly {
		existing, err := s.Resolve(ctx, req.PageID, req.Name)
		if err != nil {
			return err
		}
		if existing.Exists() {
			return ErrConflict
		}
	}

	comment := BuildComment(req.Name, s.actorName(ctx))

	g, gctx := errgroup.WithContext(ctx)
	if xml != "" {
		g.Go(func() error {
			return s.uploadPart(gctx, req.PageID, SourceFile(req.Name), SourceContentType, xml, comment)
		})
	}
	if svg != "" {
		g.Go(func() error {
			return s.uploadPart(gctx, req.PageID, RenderFile(req.Name), RenderContentType, svg, comment)
		})
	}
	if err := g.Wait(); err != nil {
		logger.LogErrorf("save_diagram", "page_id=%s name=%s: %v", req.PageID, req.Name, err)
		return err
	}
	logger.LogInfof("save_diagram", "saved page_id=%s name=%s xml=%t svg=%t", req.PageID, req.Name, xml != "", svg != "")
	return nil
}

func (s *Service) uploadPart(ctx context.Context, pageID, filename, contentType, content, comment string) error {
	existing, err := s.host.FindByName(ctx, confluence.AsApp, pageID, filename)
	if err != nil {
		return err
	}
	in := confluence.UploadRequest{
		PageID:      pageID,
		Filename:    filename,
		ContentType: contentType,
		Content:     content,
		Comment:     comment,
	}
	if existing != nil {
		in.ExistingID = existing.ID
	}
	_, err = s.host.Upload(ctx, confluence.AsApp, in)
	return err
}

// actorName returns the caller's display name, or "" if it cannot be found.
func (s *Service) actorName(ctx context.Context) string {
	u, err := s.host.CurrentUser(ctx)
	if err != nil {
		return ""
	}
	return u.Name()
}

// ListNames returns the sorted names of all diagrams with a source file.
func (s *Service) ListNames(ctx context.Context, pageID string) ([]string, error) {
	if strings.TrimSpace(pageID) == "" {
		return nil, ErrMissingName
	}
	attachments, err := s.host.ListAttachments(ctx, confluence.AsApp, pageID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	names := []string{}
	for _, att := range attachments {
		if !strings.HasSuffix(att.Title, SourceSuffix) {
			continue
		}
		name := strings.TrimSuffix(att.Title, SourceSuffix)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
