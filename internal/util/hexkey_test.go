package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHex(t *testing.T) {
	cases := []struct {
		in   string
		out  string
		ok   bool
		name string
	}{
		{"DEADBEEF", "deadbeef", true, "uppercase"},
		{"  de ad be ef  ", "deadbeef", true, "spaced"},
		{"abc", "", false, "odd length"},
		{"zz", "", false, "not hex"},
		{"", "", false, "empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizeHex(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.out, got)
		})
	}
}
