package textextract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTextPDF writes an uncompressed PDF with one Helvetica line per page.
func writeTextPDF(t *testing.T, lines ...string) string {
	t.Helper()

	n := len(lines)
	objs := []string{"<< /Type /Catalog /Pages 2 0 R >>", "", "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"}
	kids := make([]string, 0, n)
	for _, l := range lines {
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", l)
		objs = append(objs, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
		contentNr := len(objs)
		objs = append(objs, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>", contentNr))
		kids = append(kids, fmt.Sprintf("%d 0 R", len(objs)))
	}
	objs[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n)

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)

	path := filepath.Join(t.TempDir(), "fixture.pdf")
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFitzOpenerReadsPages(t *testing.T) {
	path := writeTextPDF(t, "Alpha", "Beta")

	doc, err := fitzOpener{}.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()
	if doc.NumPage() != 2 {
		t.Fatalf("pages = %d", doc.NumPage())
	}
	for i, want := range []string{"Alpha", "Beta"} {
		p, err := doc.Page(i)
		if err != nil {
			t.Fatalf("page %d: %v", i, err)
		}
		text, err := p.Text()
		p.Close()
		if err != nil {
			t.Fatalf("page %d text: %v", i, err)
		}
		if !strings.Contains(text, want) {
			t.Fatalf("page %d text = %q, want %q", i, text, want)
		}
	}

	if _, err := (fitzOpener{}).Open(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Fatal("missing file opened")
	}
}

func TestTabulaFinderOnPlainText(t *testing.T) {
	path := writeTextPDF(t, "Alpha", "Beta")

	found, err := tabulaFinder{}.FindTables(path)
	if err != nil {
		t.Fatal(err)
	}
	for page, tables := range found {
		if page < 0 || page > 1 {
			t.Fatalf("table on unknown page %d", page)
		}
		for _, tbl := range tables {
			if len(tbl) == 0 {
				t.Fatalf("empty table reported on page %d", page)
			}
		}
	}

	if _, err := (tabulaFinder{}).FindTables(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Fatal("missing file scanned")
	}
}

func TestExtractWithDefaultBackends(t *testing.T) {
	path := writeTextPDF(t, "Alpha", "Beta")

	text, stats, err := New().Extract(path, Options{PageNumbers: true})
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalPages != 2 || stats.TablesFailed {
		t.Fatalf("stats = %+v", stats)
	}
	first, second := strings.Index(text, "--- Page 1 ---"), strings.Index(text, "--- Page 2 ---")
	if first < 0 || second < first {
		t.Fatalf("page headers out of order in %q", text)
	}
	if a, b := strings.Index(text, "Alpha"), strings.Index(text, "Beta"); a < first || b < second {
		t.Fatalf("page text misplaced in %q", text)
	}
}
