package ffmpeg

import (
	"strings"
	"testing"
)

func TestSanitizeTextStripsGraphSyntax(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`He said: "it's [great]!"`, "He said its great"},
		{"Café déjà vu", "Cafe deja vu"},
		{"drawtext=text='x':y=1;[v]", "drawtexttextxy1v"},
		{"  spaced \t out\nlines  ", "spaced out lines"},
		{"50% off, 100\\ sure", "50 off 100 sure"},
	}
	for _, tc := range cases {
		if got := SanitizeText(tc.in, 0); got != tc.want {
			t.Errorf("SanitizeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeTextTruncatesAtWordBoundary(t *testing.T) {
	if got := SanitizeText("alpha beta gamma", 12); got != "alpha beta" {
		t.Fatalf("got %q", got)
	}
	if got := SanitizeText("alpha beta gamma", 10); got != "alpha beta" {
		t.Fatalf("got %q", got)
	}
	if got := SanitizeText("supercalifragilistic", 5); got != "super" {
		t.Fatalf("single long word should hard cut, got %q", got)
	}
}

func TestSanitizedTextSurvivesGraphRendering(t *testing.T) {
	title := SanitizeText(`Fractions: "½ + ¼" [part 1]; it's easy`, 0)
	node := Node{Inputs: []string{"v0"}, Name: "drawtext", Params: []Param{P("text", title)}, Outputs: []string{"v1"}}
	rendered := node.String()
	body := strings.TrimSuffix(strings.TrimPrefix(rendered, "[v0]drawtext=text="), "[v1]")
	if strings.ContainsAny(body, ":;[]\"\\,") {
		t.Fatalf("rendered text leaks graph syntax: %q", rendered)
	}
	if strings.Count(rendered, "[") != 2 || strings.Count(rendered, "]") != 2 {
		t.Fatalf("unexpected pad labels in %q", rendered)
	}
}
