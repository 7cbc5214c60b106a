package ingest

import (
	"strings"
	"testing"
)

// TestDecoderUnavailableErrorNamesPackage checks that the message points at
// the decoder package that actually exists for each capability.
func TestDecoderUnavailableErrorNamesPackage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		capability string
		wantPath   string
	}{
		{"xlsx", "decoder/xlsx"},
		{"xls", "decoder/xls"},
		{"html", "decoder/htmltab"},
	}

	for _, tc := range cases {
		err := &DecoderUnavailableError{File: "f", Capability: tc.capability}
		if msg := err.Error(); !strings.Contains(msg, tc.wantPath) {
			t.Errorf("Error() = %q, want mention of %s", msg, tc.wantPath)
		}
	}
}
