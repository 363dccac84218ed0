// Package diagrams maps diagram names to their page attachments.
package diagrams

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	SourceSuffix      = ".mxfile"
	RenderSuffix      = ".svg"
	SourceContentType = "application/xml"
	RenderContentType = "image/svg+xml"

	// CommentMarker starts every comment written on a diagram attachment.
	CommentMarker = "FlowMe diagram:"

	MaxNameLength = 200
)

var (
	ErrMissingName  = errors.New("missing pageId or diagramName")
	ErrInvalidName  = errors.New("invalid diagram name")
	ErrNoContent    = errors.New("no diagram content provided")
	ErrConflict     = errors.New("diagram already exists")
	ErrInvalidInput = errors.New("invalid diagram content")
)

// SourceFile returns the attachment name holding the diagram document.
func SourceFile(name string) string { return name + SourceSuffix }

// RenderFile returns the attachment name holding the SVG preview.
func RenderFile(name string) string { return name + RenderSuffix }

// ValidateName checks a page ID and diagram name before any host call.
func ValidateName(pageID, name string) error {
	if strings.TrimSpace(pageID) == "" || strings.TrimSpace(name) == "" {
		return ErrMissingName
	}
	if strings.ContainsAny(name, `/\`) || utf8.RuneCountInString(name) > MaxNameLength {
		return ErrInvalidName
	}
	return nil
}

// BuildComment builds the provenance comment for an upload. An empty
// displayName leaves the author out.
func BuildComment(name, displayName string) string {
	comment := CommentMarker + " " + name
	if displayName != "" {
		comment += " | savedBy:" + displayName
	}
	return comment
}
