package pdfops

import (
	"errors"
	"slices"
	"testing"
)

func openTest(t *testing.T, pages ...testPage) *SourceDocument {
	t.Helper()
	doc, err := OpenDocument(buildPDF(t, pages...))
	if err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}
	t.Cleanup(func() { doc.Close() })
	return doc
}

func TestAssembleRoundTrip(t *testing.T) {
	doc := openTest(t, labelled("P1", "P2", "P3", "P4")...)
	if doc.PageCount() != 4 {
		t.Fatalf("page count = %d", doc.PageCount())
	}
	out, err := Assemble(doc, []int{0, 1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if got := pageLabels(t, out); !slices.Equal(got, []string{"P1", "P2", "P3", "P4"}) {
		t.Fatalf("pages = %v", got)
	}
}

func TestAssembleKeepsOrderAndDuplicates(t *testing.T) {
	doc := openTest(t, labelled("P1", "P2", "P3")...)
	out, err := Assemble(doc, []int{2, 2, 0})
	if err != nil {
		t.Fatal(err)
	}
	if got := pageLabels(t, out); !slices.Equal(got, []string{"P3", "P3", "P1"}) {
		t.Fatalf("pages = %v", got)
	}
}

func TestAssembleErrors(t *testing.T) {
	doc := openTest(t, labelled("P1", "P2")...)

	for _, indices := range [][]int{{0, 2}, {-1}, nil} {
		_, err := Assemble(doc, indices)
		var ae *AssemblyError
		if !errors.As(err, &ae) {
			t.Errorf("Assemble(%v) err = %v, want AssemblyError", indices, err)
		}
	}

	doc.Close()
	_, err := Assemble(doc, []int{0})
	var ae *AssemblyError
	if !errors.As(err, &ae) {
		t.Fatalf("closed document err = %v, want AssemblyError", err)
	}
}

func TestOpenDocumentRejectsGarbage(t *testing.T) {
	if _, err := OpenDocument(nil); err == nil {
		t.Fatal("empty input accepted")
	}
	if _, err := OpenDocument([]byte("%PDF-1.4\nnot really")); err == nil {
		t.Fatal("broken PDF accepted")
	}
}
