package statuscheck

import (
	"bytes"
	"fmt"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	api.DisableConfigDir()
}

// samplePDF is a one page document both engines must be able to open.
var samplePDF = buildSample()

func buildSample() []byte {
	content := "BT /F1 12 Tf 72 720 Td (status) Tj ET"
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

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
	return b.Bytes()
}

// checkPDF runs the sample through pdfcpu, which backs split, merge and images.
func (c *Checker) checkPDF() Status {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(c.sample), conf)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	if n != 1 {
		return Status{OK: false, Message: fmt.Sprintf("sample reports %d pages", n)}
	}
	return Status{OK: true, Message: "Available"}
}

// checkText opens the sample with MuPDF through go-fitz.
func (c *Checker) checkText() Status {
	doc, err := fitz.NewFromMemory(c.sample)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	defer doc.Close()
	if n := doc.NumPage(); n != 1 {
		return Status{OK: false, Message: fmt.Sprintf("sample reports %d pages", n)}
	}
	return Status{OK: true, Message: "Available"}
}
