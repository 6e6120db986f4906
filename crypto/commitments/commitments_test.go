package commitments

import (
	"testing"
)

func TestCommit(t *testing.T) {
	for _, tc := range []struct {
		domain, body   string
		mdomain, mbody string
		mutate         bool
		want           bool
	}{
		{"request", "bar", "request", "bar", false, true},
		{"request", "bar", "request", "baz", false, false},
		{"request", "bar", "result", "bar", false, false},
		{"request", "bar", "request", "bar", true, false},
	} {
		c := Commit(tc.domain, []byte(tc.body))
		if tc.mutate {
			c[0] ^= 1
		}
		if got := Verify(tc.mdomain, []byte(tc.mbody), c[:]); got != tc.want {
			t.Errorf("Verify(%v, %v, %x): %v, want %v", tc.mdomain, tc.mbody, c, got, tc.want)
		}
	}
}

func TestDeterministic(t *testing.T) {
	a := Commit("request", []byte("body"))
	b := Commit("request", []byte("body"))
	if a != b {
		t.Fatal("commitments are not deterministic")
	}
	if Verify("request", []byte("body"), a[:Size-1]) {
		t.Fatal("truncated commitment must not verify")
	}
}
