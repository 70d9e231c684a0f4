package pdfops

import (
	"io"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/rs/zerolog/log"

	"github.com/local/pdftoolbox/internal/filetype"
	"github.com/local/pdftoolbox/internal/metrics"
)

// ExtractedImage is one embedded image stream as stored in the source PDF.
type ExtractedImage struct {
	Index  int // zero-based discovery order across the document
	Page   int // 1-based
	Name   string
	Format string // file type reported by pdfcpu, e.g. jpg, png, tif
	Width  int
	Height int
	Data   []byte
}

// CollectImages walks every page in order and returns the raw embedded
// images. A page whose image resources cannot be read is skipped.
func CollectImages(doc *SourceDocument) ([]ExtractedImage, error) {
	rs, err := doc.reader()
	if err != nil {
		return nil, &CollectionError{Err: err}
	}
	ctx, err := api.ReadValidateAndOptimize(rs, newConfig())
	if err != nil {
		return nil, &CollectionError{Err: err}
	}

	detector := filetype.New()
	images := make([]ExtractedImage, 0)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		found, err := pdfcpu.ExtractPageImages(ctx, pageNr, false)
		if err != nil {
			log.Warn().Err(err).Int("page", pageNr).Msg("skipping page with unreadable images")
			metrics.IncSkipped("images", "page_unreadable")
			continue
		}

		objNrs := make([]int, 0, len(found))
		for nr := range found {
			objNrs = append(objNrs, nr)
		}
		sort.Ints(objNrs)

		for _, nr := range objNrs {
			img := found[nr]
			if img.Reader == nil {
				continue
			}
			data, err := io.ReadAll(img)
			if err != nil || len(data) == 0 {
				log.Warn().Err(err).Int("page", pageNr).Int("obj", nr).Msg("skipping unreadable image")
				metrics.IncSkipped("images", "image_unreadable")
				continue
			}
			format := img.FileType
			if format == "" {
				format = detector.ImageExtension(data)
			}
			images = append(images, ExtractedImage{
				Index:  len(images),
				Page:   pageNr,
				Name:   img.Name,
				Format: format,
				Width:  img.Width,
				Height: img.Height,
				Data:   data,
			})
		}
	}

	metrics.AddImages(len(images))
	return images, nil
}
