package exportapp

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by export.format.
const (
	FormatJSON    = "json"
	FormatYAML    = "yaml"
	FormatMsgpack = "msgpack"
)

// rowEncoder writes one document per mapped row.
type rowEncoder interface {
	Encode(v any) error
}

// flushEncoder is implemented by encoders that buffer output.
type flushEncoder interface {
	rowEncoder
	Close() error
}

// newRowEncoder returns the encoder for format. JSON writes one document per
// line (indented when pretty), YAML writes a "---" separated stream and
// msgpack writes concatenated maps.
func newRowEncoder(format string, out io.Writer, pretty bool) (rowEncoder, error) {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		enc := json.NewEncoder(out)
		if pretty {
			enc.SetIndent("", "  ")
		}
		return enc, nil
	case FormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		return enc, nil
	case FormatMsgpack:
		enc := msgpack.NewEncoder(out)
		enc.SetSortMapKeys(true)
		return enc, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

func closeEncoder(enc rowEncoder) error {
	if c, ok := enc.(flushEncoder); ok {
		return c.Close()
	}
	return nil
}

// rowDecoder reads one entity document at a time; it returns io.EOF after
// the last one.
type rowDecoder interface {
	Decode(v any) error
}

// newRowDecoder returns the decoder matching newRowEncoder's output for
// format. JSON numbers are kept as json.Number so integer keys survive.
func newRowDecoder(format string, in io.Reader) (rowDecoder, error) {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		dec := json.NewDecoder(in)
		dec.UseNumber()
		return dec, nil
	case FormatYAML:
		return yaml.NewDecoder(in), nil
	case FormatMsgpack:
		return msgpack.NewDecoder(in), nil
	default:
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
}
