package envutil

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want time.Duration
	}{
		{name: "empty_uses_default", raw: "", want: 7 * time.Second},
		{name: "go_duration", raw: "1m30s", want: 90 * time.Second},
		{name: "bare_seconds", raw: "45", want: 45 * time.Second},
		{name: "garbage_uses_default", raw: "soon", want: 7 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ENVUTIL_TEST_DURATION", tc.raw)
			if got := Duration("ENVUTIL_TEST_DURATION", 7*time.Second); got != tc.want {
				t.Fatalf("Duration(%q)=%v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestBool(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_BOOL", "off")
	if Bool("ENVUTIL_TEST_BOOL", true) {
		t.Fatalf("Bool(off)=true, want false")
	}
	t.Setenv("ENVUTIL_TEST_BOOL", "maybe")
	if !Bool("ENVUTIL_TEST_BOOL", true) {
		t.Fatalf("Bool(maybe) should fall back to default")
	}
}

func TestIntAndFloat(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_INT", "12")
	if got := Int("ENVUTIL_TEST_INT", 3); got != 12 {
		t.Fatalf("Int=%d, want 12", got)
	}
	t.Setenv("ENVUTIL_TEST_FLOAT", "x")
	if got := Float("ENVUTIL_TEST_FLOAT", 1.5); got != 1.5 {
		t.Fatalf("Float=%v, want 1.5", got)
	}
}
