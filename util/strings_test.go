package util

import "testing"

func TestStringInSlice(t *testing.T) {
	tests := []struct {
		s    string
		list []string
		want bool
	}{
		{"analyze", []string{"analyze", "process", "copy"}, true},
		{"teleport", []string{"analyze", "process", "copy"}, false},
		{"", []string{"a", ""}, true},
		{"x", []string{}, false},
		{"x", nil, false},
	}
	for _, tc := range tests {
		if got := StringInSlice(tc.s, tc.list); got != tc.want {
			t.Errorf("StringInSlice(%q, %v) = %v, want %v", tc.s, tc.list, got, tc.want)
		}
	}
}
