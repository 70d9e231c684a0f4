package filetype

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	IsPDF       bool
	IsImage     bool
	Description string
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Detect detects the actual content type of an in-memory buffer using magic bytes
func (d *Detector) Detect(data []byte) *FileTypeInfo {
	mtype := mimetype.Detect(data)

	info := &FileTypeInfo{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
	}
	d.classify(info)

	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Int("size", len(data)).Msg("detected file type")
	return info
}

// classify determines what the pipeline may do with the buffer
func (d *Detector) classify(info *FileTypeInfo) {
	mimeType := info.MIMEType

	switch {
	case mimeType == "application/pdf":
		info.IsPDF = true
		info.Description = "PDF document"

	case strings.HasPrefix(mimeType, "image/"):
		info.IsImage = true
		info.Description = "Image file"

	default:
		info.Description = fmt.Sprintf("Unsupported file type: %s", mimeType)
	}
}

// IsPDF reports whether data starts like a PDF document
func (d *Detector) IsPDF(data []byte) bool {
	return d.Detect(data).IsPDF
}

// ImageExtension returns the extension (without dot) matching the image bytes,
// falling back to "bin" for anything mimetype does not recognise as an image.
func (d *Detector) ImageExtension(data []byte) string {
	info := d.Detect(data)
	if !info.IsImage {
		return "bin"
	}
	ext := strings.TrimPrefix(info.Extension, ".")
	if ext == "jpeg" {
		ext = "jpg"
	}
	return ext
}
