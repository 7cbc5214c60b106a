package ingest

import (
	"errors"
	"fmt"
)

// ErrEmptyTable reports a parse that succeeded but produced zero data rows.
// Callers must treat it as "nothing to load" and skip the write, not fail it.
var ErrEmptyTable = errors.New("table has no rows")

// UnsupportedKindError reports a filename whose extension does not map to any
// recognized kind, or a Parse call with a kind the pipeline does not handle.
type UnsupportedKindError struct {
	File string
	Kind Kind
}

func (e *UnsupportedKindError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("%s: unrecognized file type", e.File)
	}
	return fmt.Sprintf("%s: unsupported file kind %q", e.File, e.Kind)
}

// DecoderUnavailableError reports a recognized kind whose optional decoder is
// not linked into the binary. Capability names the missing decoder so the
// caller can tell the user what to add.
type DecoderUnavailableError struct {
	File       string
	Capability string
}

func (e *DecoderUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s decoder unavailable (link tabload/internal/ingest/decoder/%s or convert the file to CSV)",
		e.File, e.Capability, decoderPackage(e.Capability))
}

// decoderPackage maps a capability to its decoder package directory. The two
// differ only for HTML, whose package avoids colliding with the stdlib name.
func decoderPackage(capability string) string {
	if capability == "html" {
		return "htmltab"
	}
	return capability
}

// DecodeError reports bytes that do not parse under the declared kind and
// format options. It always carries the filename and the underlying cause.
type DecodeError struct {
	File string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode: %v", e.File, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
