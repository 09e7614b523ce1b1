package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/okatech-org/digitalium-archive/pkg/domain-errors"
)

// TestParseDocumentID validates the parsing invariant: IDs must be valid,
// non-empty, non-nil UUIDs.
func TestParseDocumentID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseDocumentID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseDocumentID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseDocumentID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseDocumentID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, DocumentID(valid), id)
		assert.False(t, id.IsNil())
	})
}

func TestParseAttachmentID(t *testing.T) {
	t.Run("rejects malformed input", func(t *testing.T) {
		for _, in := range []string{"", "xyz", uuid.Nil.String()} {
			_, err := ParseAttachmentID(in)
			require.Error(t, err, "input %q", in)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseAttachmentID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, AttachmentID(valid), id)
	})
}

// TestTextRoundTrip verifies the canonical uuid form survives JSON encoding.
// Defined types drop uuid.UUID's marshalers, so these are implemented by hand
// and a regression here would silently turn IDs into byte arrays on the wire.
func TestTextRoundTrip(t *testing.T) {
	docID := NewDocumentID()

	encoded, err := json.Marshal(docID)
	require.NoError(t, err)
	assert.JSONEq(t, `"`+docID.String()+`"`, string(encoded))

	var decoded DocumentID
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, docID, decoded)

	var bad AttachmentID
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &bad))
}

// TestTypeDistinction verifies the compiler enforces type safety.
// This is a compile-time check - if this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	docID := DocumentID(uuid.New())
	attID := AttachmentID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ DocumentID = attID    // compile error
	// var _ AttachmentID = docID  // compile error

	// Verify they're distinct at runtime too
	assert.NotEqual(t, uuid.UUID(docID), uuid.UUID(attID))
}
