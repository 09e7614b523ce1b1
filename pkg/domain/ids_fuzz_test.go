//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseDocumentID tests that parsing never panics on arbitrary input
// and always returns either a valid ID or an error. Document IDs arrive
// straight from URL path segments, so this is a trust boundary.
func FuzzParseDocumentID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE documents;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseDocumentID(input)

		// Either a valid ID or an error, never both; a valid ID round-trips
		// through its string form unchanged.
		if err == nil {
			roundTrip, err2 := ParseDocumentID(id.String())
			if err2 != nil {
				t.Errorf("valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed ID value")
			}
		}

		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseAllIDs ensures both ID types validate identically; a gap between
// them would let an input pass as one type and fail as the other.
func FuzzParseAllIDs(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("")
	f.Add("invalid")

	f.Fuzz(func(t *testing.T, input string) {
		_, errDoc := ParseDocumentID(input)
		_, errAtt := ParseAttachmentID(input)

		if (errDoc == nil) != (errAtt == nil) {
			t.Error("inconsistent parsing across ID types")
		}
	})
}
