package outbox

import (
	"reflect"
	"testing"
)

func TestSplitBrokers(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"single", "localhost:9092", []string{"localhost:9092"}},
		{"multiple with spaces", "a:9092, b:9092 ,c:9092", []string{"a:9092", "b:9092", "c:9092"}},
		{"trailing comma", "a:9092,", []string{"a:9092"}},
		{"only commas", ",,", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitBrokers(tc.raw)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("splitBrokers(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}
