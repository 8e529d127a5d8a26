package httpapi

import "testing"

func TestParseLimit(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", defaultLogLimit},
		{"abc", defaultLogLimit},
		{"-3", defaultLogLimit},
		{"0", defaultLogLimit},
		{"25", 25},
		{"5000", maxLogLimit},
	}
	for _, c := range cases {
		if got := parseLimit(c.in); got != c.want {
			t.Fatalf("parseLimit(%q)=%d want %d", c.in, got, c.want)
		}
	}
}
