package ocr

import (
	"testing"

	"github.com/ledongthuc/pdf"
)

func TestGroupTextRunsJoinsRunsIntoWords(t *testing.T) {
	// "Rechnung 123" on one baseline, "Netto" on the next.
	runs := []pdf.Text{
		{S: "Rech", X: 10, Y: 700, W: 20, FontSize: 10},
		{S: "nung", X: 30, Y: 700, W: 20, FontSize: 10},
		{S: " ", X: 50, Y: 700, W: 4},
		{S: "123", X: 54, Y: 700, W: 15, FontSize: 10},
		{S: "Netto", X: 10, Y: 680, W: 25, FontSize: 10},
	}

	tokens, nextLine := groupTextRuns(runs, 0)
	if len(tokens) != 3 {
		t.Fatalf("got %d tokens, want 3: %+v", len(tokens), tokens)
	}
	if tokens[0].Text != "Rechnung" || tokens[1].Text != "123" || tokens[2].Text != "Netto" {
		t.Fatalf("unexpected words: %q %q %q", tokens[0].Text, tokens[1].Text, tokens[2].Text)
	}
	if tokens[0].Line == tokens[2].Line {
		t.Fatalf("baseline change must advance the line index")
	}
	if tokens[0].Confidence != pdfTextConfidence {
		t.Fatalf("text-layer tokens must carry confidence %v", pdfTextConfidence)
	}
	if nextLine <= tokens[2].Line {
		t.Fatalf("next line index %d must be past the last token line %d", nextLine, tokens[2].Line)
	}
}
