package persist

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testState struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec := NewJSONCodec()
	original := testState{Name: "test", Count: 42}

	var buf bytes.Buffer

	require.NoError(t, codec.Encode(&buf, original))

	var decoded testState

	require.NoError(t, codec.Decode(&buf, &decoded))
	assert.Equal(t, original, decoded)
}

func TestJSONCodec_CompactNoIndent(t *testing.T) {
	t.Parallel()

	codec := &JSONCodec{}

	var buf bytes.Buffer

	require.NoError(t, codec.Encode(&buf, testState{Name: "compact", Count: 1}))

	// Compact JSON has at most one trailing newline (from json.Encoder).
	assert.LessOrEqual(t, strings.Count(buf.String(), "\n"), 1)
}

func TestJSONCodec_PrettyPrint(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, NewJSONCodec().Encode(&buf, testState{Name: "pretty", Count: 1}))
	assert.Contains(t, buf.String(), "\n  \"name\"")
}

func TestJSONCodec_StrictRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	var st testState

	lenient := NewJSONCodec()
	require.NoError(t, lenient.Decode(strings.NewReader(`{"name":"x","extra":1}`), &st))

	strict := &JSONCodec{Strict: true}
	require.Error(t, strict.Decode(strings.NewReader(`{"name":"x","extra":1}`), &st))
}

func TestJSONCodec_DecodeInvalid(t *testing.T) {
	t.Parallel()

	var st testState

	err := NewJSONCodec().Decode(strings.NewReader("{not json"), &st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json decode")
}
