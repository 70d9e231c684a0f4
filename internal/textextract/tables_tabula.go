package textextract

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tsawler/tabula/model"
	"github.com/tsawler/tabula/reader"
	"github.com/tsawler/tabula/tables"
)

// tabulaFinder detects tables from positioned text fragments with tabula's
// geometric detector.
type tabulaFinder struct{}

func (tabulaFinder) FindTables(path string) (map[int][]Table, error) {
	r, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF for table detection: %w", err)
	}
	defer r.Close()

	count, err := r.PageCount()
	if err != nil {
		return nil, fmt.Errorf("failed to read page count: %w", err)
	}

	detector := tables.NewGeometricDetector()
	found := make(map[int][]Table)
	for i := 0; i < count; i++ {
		page, err := r.GetPage(i)
		if err != nil {
			log.Debug().Err(err).Int("page", i+1).Msg("tabula: page unavailable")
			continue
		}
		frags, err := r.ExtractTextFragments(page)
		if err != nil || len(frags) == 0 {
			continue
		}

		w, _ := page.Width()
		h, _ := page.Height()
		mp := model.NewPage(w, h)
		mp.Number = i + 1
		for _, f := range frags {
			mp.RawText = append(mp.RawText, model.TextFragment{
				Text:     f.Text,
				BBox:     model.BBox{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height},
				FontSize: f.FontSize,
				FontName: f.FontName,
			})
		}

		detected, err := detector.Detect(mp)
		if err != nil {
			log.Debug().Err(err).Int("page", i+1).Msg("tabula: detection failed")
			continue
		}
		for _, t := range detected {
			if t == nil || len(t.Rows) == 0 {
				continue
			}
			rows := make(Table, 0, len(t.Rows))
			for _, row := range t.Rows {
				cells := make([]string, len(row))
				for j, c := range row {
					cells[j] = c.Text
				}
				rows = append(rows, cells)
			}
			found[i] = append(found[i], rows)
		}
	}
	return found, nil
}
