package pdfops

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// testPage describes one page of a generated PDF.
type testPage struct {
	Label  string        // drawn as "(Label) Tj" so pages can be told apart
	Images []color.Color // embedded DCT images, one object each, in object order
}

// buildPDF writes a minimal uncompressed PDF with a correct xref table.
func buildPDF(t *testing.T, pages ...testPage) []byte {
	t.Helper()

	type obj struct{ body []byte }
	objs := []obj{{}, {}, {}} // 1 catalog, 2 pages, 3 font; filled below
	add := func(body []byte) int {
		objs = append(objs, obj{body})
		return len(objs)
	}

	kids := make([]int, 0, len(pages))
	for _, p := range pages {
		content := fmt.Sprintf("BT\n/F1 12 Tf\n72 720 Td\n(%s) Tj\nET", p.Label)
		// Resource names run backwards (ImZ, ImY, ...) and are drawn last to
		// first, so only object numbers reflect the listed order.
		var xobj strings.Builder
		var draws []string
		for j, c := range p.Images {
			jpg := solidJPEG(t, c)
			var s bytes.Buffer
			fmt.Fprintf(&s, "<< /Type /XObject /Subtype /Image /Width 4 /Height 4 /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode /Length %d >>\nstream\n", len(jpg))
			s.Write(jpg)
			s.WriteString("\nendstream")
			imgNr := add(s.Bytes())
			name := fmt.Sprintf("Im%c", 'Z'-j)
			fmt.Fprintf(&xobj, " /%s %d 0 R", name, imgNr)
			draws = append(draws, fmt.Sprintf("q 100 0 0 100 %d 600 cm /%s Do Q", 72+j*110, name))
		}
		slices.Reverse(draws)
		for _, d := range draws {
			content += "\n" + d
		}
		resources := ""
		if xobj.Len() > 0 {
			resources = " /XObject <<" + xobj.String() + " >>"
		}
		contentNr := add([]byte(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content)))
		pageNr := add([]byte(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >>%s >> >>", contentNr, resources)))
		kids = append(kids, pageNr)
	}

	var kidRefs bytes.Buffer
	for i, k := range kids {
		if i > 0 {
			kidRefs.WriteByte(' ')
		}
		fmt.Fprintf(&kidRefs, "%d 0 R", k)
	}
	objs[0].body = []byte("<< /Type /Catalog /Pages 2 0 R >>")
	objs[1].body = []byte(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kidRefs.String(), len(kids)))
	objs[2].body = []byte("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs)+1)
	for i, o := range objs {
		offsets[i+1] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n", i+1)
		b.Write(o.body)
		b.WriteString("\nendobj\n")
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objs)+1)
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objs); i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

func labelled(labels ...string) []testPage {
	out := make([]testPage, len(labels))
	for i, l := range labels {
		out[i] = testPage{Label: l}
	}
	return out
}

func solidJPEG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

var labelRe = regexp.MustCompile(`\(([A-Za-z0-9]+)\) Tj`)

// pageLabels reads data back with pdfcpu and returns each page's label.
func pageLabels(t *testing.T, data []byte) []string {
	t.Helper()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), newConfig())
	if err != nil {
		t.Fatalf("output is not a readable PDF: %v", err)
	}
	labels := make([]string, 0, ctx.PageCount)
	for nr := 1; nr <= ctx.PageCount; nr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, nr)
		if err != nil {
			t.Fatalf("page %d content: %v", nr, err)
		}
		content, err := io.ReadAll(r)
		if err != nil {
			t.Fatal(err)
		}
		m := labelRe.FindSubmatch(content)
		if m == nil {
			t.Fatalf("page %d has no label in %q", nr, content)
		}
		labels = append(labels, string(m[1]))
	}
	return labels
}
