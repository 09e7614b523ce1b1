// Package conversion decides whether attachments need PDF/A transcoding
// before a document enters a durable-format custody phase. It never converts
// anything itself; the external conversion service does the work, this
// advisor only answers the question.
package conversion

import (
	"github.com/okatech-org/digitalium-archive/internal/archive/models"
)

// NeedsConversion reports whether the attachment is not yet in the durable
// archival PDF format.
func NeedsConversion(a models.Attachment) bool {
	return a.Kind != models.KindPDF
}

// Summary aggregates the conversion needs of a document's current version.
type Summary struct {
	// NeedsConversion counts attachments that are not archival PDFs.
	NeedsConversion int `json:"needs_conversion"`
	// Total is the size of the current attachment snapshot.
	Total int `json:"total"`
}

// Summarize walks the current version's attachment snapshot. The engine
// surfaces the result to the caller on transitions into semi_active or
// archived; it is advisory only and mutates nothing.
func Summarize(doc *models.Document) Summary {
	var s Summary
	for _, a := range doc.Attachments() {
		s.Total++
		if NeedsConversion(a) {
			s.NeedsConversion++
		}
	}
	return s
}
