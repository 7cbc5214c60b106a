package ingest

// ResolveColumns produces the final column identifiers for a table.
//
// When overrides are present and their count matches the original column
// count, each override is cleaned and used; otherwise the overrides are
// discarded and the originals are cleaned directly. A count mismatch is
// recovered locally, never surfaced as a failure.
//
// Duplicate cleaned names are passed through unchanged; collision policy
// belongs to the destination (see DESIGN.md).
func ResolveColumns(original, overrides []string) []string {
	source := original
	if overrides != nil && len(overrides) == len(original) {
		source = overrides
	}

	final := make([]string, len(source))
	for i, name := range source {
		final[i] = CleanColumnName(name)
	}
	return final
}
