package domain

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_RoundTrip(t *testing.T) {
	original := []any{12.5, "prod-42"}

	token := EncodeCursor(original)
	require.NotEmpty(t, token)

	decoded, ok := DecodeCursor(token)
	require.True(t, ok)
	assert.Equal(t, original, decoded)
}

func TestEncodeCursor_EmptyTuple(t *testing.T) {
	assert.Empty(t, EncodeCursor(nil))
	assert.Empty(t, EncodeCursor([]any{}))
}

func TestDecodeCursor_EmptyToken(t *testing.T) {
	_, ok := DecodeCursor("")
	assert.False(t, ok)
}

func TestDecodeCursor_NotBase64(t *testing.T) {
	_, ok := DecodeCursor("%%%not-base64%%%")
	assert.False(t, ok)
}

func TestDecodeCursor_NotJSON(t *testing.T) {
	token := base64.StdEncoding.EncodeToString([]byte("definitely not json"))
	_, ok := DecodeCursor(token)
	assert.False(t, ok)
}

func TestDecodeCursor_EmptySortTuple(t *testing.T) {
	token := base64.StdEncoding.EncodeToString([]byte(`{"sort":[]}`))
	_, ok := DecodeCursor(token)
	assert.False(t, ok)
}

func TestDecodeCursor_UnknownFieldsTolerated(t *testing.T) {
	token := base64.StdEncoding.EncodeToString([]byte(`{"sort":[3.25,"p-1"],"filters":{"brand":"evil"}}`))
	decoded, ok := DecodeCursor(token)
	require.True(t, ok)
	// Extra payload fields are ignored; the cursor is only trusted for position.
	assert.Equal(t, []any{3.25, "p-1"}, decoded)
}
