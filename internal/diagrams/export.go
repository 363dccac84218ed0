package diagrams

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

const (
	svgBase64Prefix = "data:image/svg+xml;base64,"
	svgUTF8Prefix   = "data:image/svg+xml;utf8,"
	base64Marker    = "base64,"
)

// NormalizeSVG turns an editor export into SVG markup. Plain markup passes
// through; data URLs are decoded.
func NormalizeSVG(raw string) (string, error) {
	switch {
	case raw == "" || strings.HasPrefix(raw, "<"):
		return raw, nil
	case strings.HasPrefix(raw, svgBase64Prefix):
		data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(raw, svgBase64Prefix))
		if err != nil {
			return "", fmt.Errorf("%w: svg data url: %v", ErrInvalidInput, err)
		}
		return string(data), nil
	case strings.HasPrefix(raw, svgUTF8Prefix):
		s, err := url.PathUnescape(strings.TrimPrefix(raw, svgUTF8Prefix))
		if err != nil {
			return "", fmt.Errorf("%w: svg data url: %v", ErrInvalidInput, err)
		}
		return s, nil
	}
	return "", fmt.Errorf("%w: unrecognised svg export", ErrInvalidInput)
}

// NormalizeXML turns an editor export into a diagram document. Markup passes
// through, data URLs are decoded, and a bare base64 payload is accepted only
// when it decodes to an mxfile.
func NormalizeXML(raw string) string {
	if raw == "" || strings.HasPrefix(raw, "<") {
		return raw
	}
	if strings.HasPrefix(raw, "data:") {
		if idx := strings.Index(raw, base64Marker); idx != -1 {
			if data, err := base64.StdEncoding.DecodeString(raw[idx+len(base64Marker):]); err == nil && len(data) > 0 {
				return string(data)
			}
		}
	}
	if data, err := base64.StdEncoding.DecodeString(raw); err == nil && strings.Contains(string(data), "<mxfile") {
		return string(data)
	}
	return raw
}
