package main

import (
	"testing"

	"tabload/internal/batch"
)

func TestBatchFailed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		sum  batch.Summary
		want bool
	}{
		{"all loaded", batch.Summary{Loaded: 2}, false},
		{"partial load", batch.Summary{Loaded: 1, Failed: 1}, false},
		{"all failed", batch.Summary{Failed: 3}, true},
		{"all skipped empty", batch.Summary{Skipped: 2}, false},
		{"skipped and failed", batch.Summary{Skipped: 1, Failed: 1}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := batchFailed(&tc.sum); got != tc.want {
				t.Fatalf("batchFailed(%+v) = %v, want %v", tc.sum, got, tc.want)
			}
		})
	}
}
