package ingest

import (
	"reflect"
	"testing"
)

func TestResolveColumns(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		original  []string
		overrides []string
		want      []string
	}{
		{
			name:     "no overrides cleans originals",
			original: []string{"first name", "2nd Name!"},
			want:     []string{"FIRST_NAME", "_2ND_NAME"},
		},
		{
			name:      "matching overrides used",
			original:  []string{"a", "b"},
			overrides: []string{"customer id", "order-total"},
			want:      []string{"CUSTOMER_ID", "ORDER_TOTAL"},
		},
		{
			name:      "count mismatch falls back to originals",
			original:  []string{"a", "b", "c"},
			overrides: []string{"only", "two"},
			want:      []string{"A", "B", "C"},
		},
		{
			name:      "empty override slice falls back",
			original:  []string{"a"},
			overrides: []string{},
			want:      []string{"A"},
		},
		{
			name:     "duplicates preserved",
			original: []string{"Name", "name", "NAME"},
			want:     []string{"NAME", "NAME", "NAME"},
		},
		{
			name:     "empty original list",
			original: []string{},
			want:     []string{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ResolveColumns(tc.original, tc.overrides)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ResolveColumns(%v, %v) = %v, want %v",
					tc.original, tc.overrides, got, tc.want)
			}
		})
	}
}
