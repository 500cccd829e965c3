package format

import "testing"

func TestEscapeMarkdown(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "plain"},
		{"New_Balance *574*", `New\_Balance \*574\*`},
		{"a `b` [c]", "a \\`b\\` \\[c]"},
		{"Кроссовки_беговые", `Кроссовки\_беговые`},
	}
	for _, tc := range cases {
		if got := EscapeMarkdown(tc.in); got != tc.want {
			t.Errorf("EscapeMarkdown(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	if got := EscapeMarkdownV2("1.5 + 2 = 3.5!"); got != `1\.5 \+ 2 \= 3\.5\!` {
		t.Fatalf("EscapeMarkdownV2 = %q", got)
	}
}

func TestDerefString(t *testing.T) {
	v := "x"
	if got := DerefString(&v, "d"); got != "x" {
		t.Fatalf("DerefString(&v) = %q", got)
	}
	if got := DerefString(nil, "d"); got != "d" {
		t.Fatalf("DerefString(nil) = %q", got)
	}
}
