package confluence

import "time"

const (
	// DefaultTimeout is the standard timeout for wiki REST calls
	DefaultTimeout = 30 * time.Second

	// AttachmentPageSize is the page size used when listing attachments
	AttachmentPageSize = 200

	// MaxAttachmentPages caps listing at MaxAttachmentPages*AttachmentPageSize items
	MaxAttachmentPages = 20

	// MaxVersions is how many attachment versions are fetched for history
	MaxVersions = 50
)
