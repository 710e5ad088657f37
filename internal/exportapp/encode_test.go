package exportapp

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

var encodeRows = []map[string]any{
	{"id": 1, "firstName": "Ana"},
	{"id": 2, "firstName": "Bo"},
}

func encodeAll(t *testing.T, format string, pretty bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := newRowEncoder(format, &buf, pretty)
	require.NoError(t, err)
	for _, row := range encodeRows {
		require.NoError(t, enc.Encode(row))
	}
	require.NoError(t, closeEncoder(enc))
	return buf.Bytes()
}

func TestRowEncoder_JSON(t *testing.T) {
	out := string(encodeAll(t, FormatJSON, false))
	assert.Equal(t, "{\"firstName\":\"Ana\",\"id\":1}\n{\"firstName\":\"Bo\",\"id\":2}\n", out)

	pretty := string(encodeAll(t, "", true))
	assert.Contains(t, pretty, "\n  \"firstName\": \"Ana\"")
}

func TestRowEncoder_YAML(t *testing.T) {
	out := encodeAll(t, FormatYAML, false)
	assert.Contains(t, string(out), "---")

	dec := yaml.NewDecoder(bytes.NewReader(out))
	var got []map[string]any
	for {
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			break
		}
		got = append(got, doc)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "Ana", got[0]["firstName"])
	assert.Equal(t, 2, got[1]["id"])
}

func TestRowEncoder_Msgpack(t *testing.T) {
	out := encodeAll(t, FormatMsgpack, false)

	dec := msgpack.NewDecoder(bytes.NewReader(out))
	var first, second map[string]any
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, "Ana", first["firstName"])
	assert.Equal(t, "Bo", second["firstName"])
}

func TestRowEncoder_Unsupported(t *testing.T) {
	_, err := newRowEncoder("csv", &bytes.Buffer{}, false)
	assert.ErrorContains(t, err, `unsupported output format "csv"`)
}

func TestRowDecoder_RoundTrip(t *testing.T) {
	tests := []struct {
		format string
		wantID any
	}{
		{format: FormatJSON, wantID: json.Number("1")},
		{format: FormatYAML, wantID: 1},
		{format: FormatMsgpack, wantID: int8(1)},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dec, err := newRowDecoder(tt.format, bytes.NewReader(encodeAll(t, tt.format, false)))
			require.NoError(t, err)

			var docs []map[string]any
			for {
				var doc map[string]any
				err := dec.Decode(&doc)
				if errors.Is(err, io.EOF) {
					break
				}
				require.NoError(t, err)
				docs = append(docs, doc)
			}
			require.Len(t, docs, 2)
			assert.Equal(t, "Ana", docs[0]["firstName"])
			assert.Equal(t, tt.wantID, docs[0]["id"])
		})
	}
}

func TestRowDecoder_Unsupported(t *testing.T) {
	_, err := newRowDecoder("csv", bytes.NewReader(nil))
	assert.ErrorContains(t, err, `unsupported input format "csv"`)
}
