package confluence

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
)

// ErrNoBody means the page answered but carried no body in the requested
// format. It is a failed read, not an empty page.
var ErrNoBody = errors.New("page response carried no body")

type pageBody struct {
	Status string `json:"status"`
	Body   struct {
		Value   *string `json:"value"`
		Storage *struct {
			Value string `json:"value"`
		} `json:"storage"`
		AtlasDocFormat *struct {
			Value json.RawMessage `json:"value"`
		} `json:"atlas_doc_format"`
	} `json:"body"`
}

// PageStorageBody returns the page body in the legacy storage (XHTML) format.
// An empty page returns "", nil; a response without any body returns ErrNoBody.
func (c *Client) PageStorageBody(ctx context.Context, id Identity, pageID string) (string, error) {
	q := url.Values{}
	q.Set("body-format", "storage")

	var data pageBody
	if err := c.getJSON(ctx, id, "page_storage_body", pathf("/wiki/api/v2/pages/%s", pageID), q, &data); err != nil {
		return "", err
	}
	switch {
	case data.Body.Storage != nil:
		return data.Body.Storage.Value, nil
	case data.Body.Value != nil:
		return *data.Body.Value, nil
	}
	return "", ErrNoBody
}

// PageADFBody returns the page body as an Atlassian document (JSON). The API
// sends the document either as an embedded JSON string or as an object.
func (c *Client) PageADFBody(ctx context.Context, id Identity, pageID string) ([]byte, error) {
	q := url.Values{}
	q.Set("body-format", "atlas_doc_format")

	var data pageBody
	if err := c.getJSON(ctx, id, "page_adf_body", pathf("/wiki/api/v2/pages/%s", pageID), q, &data); err != nil {
		return nil, err
	}
	if data.Body.AtlasDocFormat == nil || len(data.Body.AtlasDocFormat.Value) == 0 {
		return nil, ErrNoBody
	}
	raw := data.Body.AtlasDocFormat.Value
	var embedded string
	if err := json.Unmarshal(raw, &embedded); err == nil {
		raw = []byte(embedded)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrNoBody
	}
	return raw, nil
}

// HasDraft reports whether the page currently has an unpublished draft.
// A not-found answer or any other failure counts as "no draft".
func (c *Client) HasDraft(ctx context.Context, id Identity, pageID string) bool {
	q := url.Values{}
	q.Set("get-draft", "true")

	var data pageBody
	if err := c.getJSON(ctx, id, "page_draft", pathf("/wiki/api/v2/pages/%s", pageID), q, &data); err != nil {
		return false
	}
	return data.Status == "draft"
}
