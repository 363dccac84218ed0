package confluence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/flowme-cloud/flowme-backend/internal/logging"
)

// Attachment is the metadata the wiki keeps for a page attachment.
type Attachment struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Comment   string   `json:"comment,omitempty"`
	PageID    string   `json:"pageId,omitempty"`
	MediaType string   `json:"mediaType,omitempty"`
	Version   *Version `json:"version,omitempty"`
}

type Version struct {
	Number    int    `json:"number"`
	CreatedAt string `json:"createdAt,omitempty"`
	Message   string `json:"message,omitempty"`
	AuthorID  string `json:"authorId,omitempty"`
}

// VersionNumber returns the attachment's current version, or 0 when unknown.
func (a *Attachment) VersionNumber() int {
	if a == nil || a.Version == nil {
		return 0
	}
	return a.Version.Number
}

type attachmentPage struct {
	Results []Attachment `json:"results"`
	Links   struct {
		Next string `json:"next"`
	} `json:"_links"`
}

// ListAttachments returns every attachment on a page, following the cursor
// in each response's next link. It stops after MaxAttachmentPages pages or
// when the cursor is missing or repeats.
func (c *Client) ListAttachments(ctx context.Context, id Identity, pageID string) ([]Attachment, error) {
	var out []Attachment
	cursor := ""
	for page := 0; page < MaxAttachmentPages; page++ {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(AttachmentPageSize))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var data attachmentPage
		if err := c.getJSON(ctx, id, "list_attachments", pathf("/wiki/api/v2/pages/%s/attachments", pageID), q, &data); err != nil {
			return nil, err
		}
		out = append(out, data.Results...)

		next := cursorFromLink(data.Links.Next)
		if next == "" || next == cursor {
			break
		}
		cursor = next
	}
	return out, nil
}

func cursorFromLink(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Query().Get("cursor")
}

// FindByName returns the page attachment with exactly this file name, or nil.
func (c *Client) FindByName(ctx context.Context, id Identity, pageID, filename string) (*Attachment, error) {
	q := url.Values{}
	q.Set("filename", filename)
	q.Set("limit", "1")

	var data attachmentPage
	if err := c.getJSON(ctx, id, "find_attachment", pathf("/wiki/api/v2/pages/%s/attachments", pageID), q, &data); err != nil {
		return nil, err
	}
	if len(data.Results) == 0 {
		return nil, nil
	}
	att := data.Results[0]
	return &att, nil
}

// Download returns the attachment's content as text. A version of 0 fetches
// the latest version.
func (c *Client) Download(ctx context.Context, id Identity, pageID, attachmentID string, version int) (string, error) {
	var q url.Values
	if version > 0 {
		q = url.Values{}
		q.Set("version", strconv.Itoa(version))
	}
	data, err := c.send(ctx, id, request{
		op:      "download_attachment",
		method:  http.MethodGet,
		path:    pathf("/wiki/rest/api/content/%s/child/attachment/%s/download", pageID, attachmentID),
		query:   q,
		headers: http.Header{"Accept": []string{"*/*"}},
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UploadRequest describes one attachment write.
type UploadRequest struct {
	PageID      string
	Filename    string
	ContentType string
	Content     string
	// ExistingID updates that attachment in place instead of creating one.
	ExistingID string
	Comment    string
}

// UploadError is returned when an attachment write is rejected.
type UploadError struct {
	Status int
	Body   string
	Retry  bool
}

func (e *UploadError) Error() string {
	if e.Retry {
		return fmt.Sprintf("Attachment upload retry failed %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("Attachment upload failed %d: %s", e.Status, e.Body)
}

var attachmentDigits = regexp.MustCompile(`\d+`)

// Upload creates or updates a page attachment. When ExistingID is set and the
// create path answers with a "same file name" collision, the write is retried
// once with PUT.
func (c *Client) Upload(ctx context.Context, id Identity, in UploadRequest) (*Attachment, error) {
	logger := logging.NewLogger(ctx)
	normalizedID := attachmentDigits.FindString(in.ExistingID)

	body, contentType, err := buildUploadForm(in, normalizedID)
	if err != nil {
		return nil, err
	}

	var q url.Values
	if normalizedID != "" {
		q = url.Values{}
		q.Set("id", normalizedID)
	}
	req := request{
		op:     "upload_attachment",
		method: http.MethodPost,
		path:   pathf("/wiki/rest/api/content/%s/child/attachment", in.PageID),
		query:  q,
		body:   body,
		headers: http.Header{
			"Content-Type":      []string{contentType},
			"X-Atlassian-Token": []string{"no-check"},
		},
	}

	data, err := c.send(ctx, id, req)
	if err == nil {
		return decodeUploadResult(data)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return nil, err
	}
	if normalizedID == "" || !strings.Contains(apiErr.Body, "same file name") {
		logger.LogWarnf("upload_attachment", "upload failed page_id=%s filename=%s update=%t status=%d",
			in.PageID, in.Filename, normalizedID != "", apiErr.Status)
		return nil, &UploadError{Status: apiErr.Status, Body: apiErr.Body}
	}

	logger.LogInfof("upload_attachment", "name collision, retrying as replace page_id=%s filename=%s", in.PageID, in.Filename)
	req.method = http.MethodPut
	data, err = c.send(ctx, id, req)
	if err != nil {
		if errors.As(err, &apiErr) {
			return nil, &UploadError{Status: apiErr.Status, Body: apiErr.Body, Retry: true}
		}
		return nil, err
	}
	return decodeUploadResult(data)
}

func buildUploadForm(in UploadRequest, normalizedID string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fileHeader := make(textproto.MIMEHeader)
	fileHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, in.Filename))
	fileHeader.Set("Content-Type", in.ContentType)
	part, err := w.CreatePart(fileHeader)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write([]byte(in.Content)); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}

	if in.Comment != "" {
		commentHeader := make(textproto.MIMEHeader)
		commentHeader.Set("Content-Disposition", `form-data; name="comment"`)
		commentHeader.Set("Content-Type", "text/plain; charset=utf-8")
		part, err := w.CreatePart(commentHeader)
		if err != nil {
			return nil, "", fmt.Errorf("create comment part: %w", err)
		}
		if _, err := part.Write([]byte(in.Comment)); err != nil {
			return nil, "", fmt.Errorf("write comment part: %w", err)
		}
	}

	if normalizedID != "" {
		if err := w.WriteField("id", normalizedID); err != nil {
			return nil, "", fmt.Errorf("write id field: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// decodeUploadResult accepts both the list shape returned on create and the
// single content object returned on update.
func decodeUploadResult(data []byte) (*Attachment, error) {
	var list struct {
		Results []Attachment `json:"results"`
	}
	if err := json.Unmarshal(data, &list); err == nil && len(list.Results) > 0 {
		return &list.Results[0], nil
	}
	var single Attachment
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &single, nil
}

// Delete removes an attachment. Failures are returned to the caller.
func (c *Client) Delete(ctx context.Context, id Identity, attachmentID string) error {
	_, err := c.send(ctx, id, request{
		op:     "delete_attachment",
		method: http.MethodDelete,
		path:   pathf("/wiki/api/v2/attachments/%s", attachmentID),
	})
	return err
}

// UserRef is an author record embedded in version history.
type UserRef struct {
	AccountID   string `json:"accountId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	PublicName  string `json:"publicName,omitempty"`
}

// VersionRecord is one entry of an attachment's history. The wiki has used
// several field names for the author and message over time; all are kept.
type VersionRecord struct {
	Number    int      `json:"number"`
	CreatedAt string   `json:"createdAt,omitempty"`
	When      string   `json:"when,omitempty"`
	Message   string   `json:"message,omitempty"`
	Comment   string   `json:"comment,omitempty"`
	AuthorID  string   `json:"authorId,omitempty"`
	UserID    string   `json:"userId,omitempty"`
	CreatedBy *UserRef `json:"createdBy,omitempty"`
	By        *UserRef `json:"by,omitempty"`
	Author    *UserRef `json:"author,omitempty"`
	User      *UserRef `json:"user,omitempty"`
	Version   *struct {
		Message string `json:"message,omitempty"`
	} `json:"version,omitempty"`
}

// ListAttachmentVersions returns up to limit version records for an attachment.
func (c *Client) ListAttachmentVersions(ctx context.Context, id Identity, attachmentID string, limit int) ([]VersionRecord, error) {
	if limit <= 0 {
		limit = MaxVersions
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var data struct {
		Results []VersionRecord `json:"results"`
	}
	if err := c.getJSON(ctx, id, "list_versions", pathf("/wiki/api/v2/attachments/%s/versions", attachmentID), q, &data); err != nil {
		return nil, err
	}
	return data.Results, nil
}
