// Package decoder holds the registry of optional grid decoders (Excel
// sub-formats, HTML tables). Each decoder lives in its own subpackage and
// registers itself from init(), so a binary opts into a capability by blank
// importing the subpackage (or decoder/all for everything). Kind detection
// consults Available so unrecognized-vs-unavailable behavior tracks what is
// actually linked into the build.
package decoder

import (
	"fmt"
	"sort"
	"sync"
)

// Decoder parses raw bytes into a rectangular-ish grid of text cells.
// The first row of the grid is the header row. Implementations read the
// first sheet / first table only and must never drop data rows silently.
type Decoder interface {
	Decode(data []byte) ([][]string, error)
}

var (
	mu       sync.RWMutex
	decoders = map[string]Decoder{}
)

// Register installs a decoder under a capability name (e.g. "xlsx").
//
// Edge cases:
//   - name must be non-empty and d non-nil.
//   - Registering the same name twice panics. This is intentional to fail
//     fast on ambiguous capability wiring.
func Register(name string, d Decoder) {
	mu.Lock()
	defer mu.Unlock()

	if name == "" {
		panic("decoder: Register called with empty name")
	}
	if d == nil {
		panic("decoder: Register called with nil decoder")
	}
	if _, exists := decoders[name]; exists {
		panic(fmt.Sprintf("decoder: already registered for name=%q", name))
	}

	decoders[name] = d
}

// Lookup returns the decoder registered under name, if any.
func Lookup(name string) (Decoder, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := decoders[name]
	return d, ok
}

// Available reports whether a decoder is registered under name.
func Available(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// Names returns the registered capability names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(decoders))
	for name := range decoders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
