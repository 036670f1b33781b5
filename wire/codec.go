package wire

import (
	"io"

	"github.com/goccy/go-json"

	"github.com/sky-flux/fsrs/internal/validation"
)

// Decode reads exactly one JSON value from r into v, rejecting unknown
// fields and trailing data, then validates it. Errors are *Error.
func Decode(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return invalidInput("decode request: empty body")
		}
		return invalidInput("decode request: %w", err)
	}
	if dec.More() {
		return invalidInput("decode request: unexpected data after JSON value")
	}
	if err := validation.ValidateStruct(v); err != nil {
		return AsError(err)
	}
	return nil
}

// Encode writes v to w as indented JSON followed by a newline.
func Encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
