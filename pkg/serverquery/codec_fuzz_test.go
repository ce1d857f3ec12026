package serverquery

import "testing"

func FuzzEscapeRoundTrip(f *testing.F) {
	f.Add("hello world")
	f.Add(`\s\p\/`)
	f.Add("a|b/c\\d\n\r\t")

	f.Fuzz(func(t *testing.T, s string) {
		if got := Unescape(Escape(s)); got != s {
			t.Fatalf("round trip %q: got %q", s, got)
		}
		_ = ParseList(Escape(s))
	})
}
