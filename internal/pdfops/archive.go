package pdfops

import (
	"bytes"

	"github.com/klauspost/compress/zip"
)

// ArchiveEntry is one named buffer destined for an archive.
type ArchiveEntry struct {
	Name string
	Data []byte
}

// Archive is a finished zip buffer plus the names it contains, in write order.
type Archive struct {
	Name    string
	Data    []byte
	Entries []string
}

// BuildArchive deflates entries into a single zip. Entries without content are
// skipped; an archive that would end up empty is an error. Entry timestamps
// are left zero so identical input produces identical bytes.
func BuildArchive(entries []ArchiveEntry) ([]byte, []string, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	seen := make(map[string]struct{}, len(entries))
	written := make([]string, 0, len(entries))
	for _, e := range entries {
		if len(e.Data) == 0 {
			continue
		}
		if e.Name == "" {
			zw.Close()
			return nil, nil, &ArchiveError{Reason: "entry without a name"}
		}
		if _, dup := seen[e.Name]; dup {
			zw.Close()
			return nil, nil, &ArchiveError{Entry: e.Name, Reason: "duplicate entry name"}
		}
		seen[e.Name] = struct{}{}

		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Deflate})
		if err != nil {
			zw.Close()
			return nil, nil, &ArchiveError{Entry: e.Name, Reason: "create entry", Err: err}
		}
		if _, err := w.Write(e.Data); err != nil {
			zw.Close()
			return nil, nil, &ArchiveError{Entry: e.Name, Reason: "write entry", Err: err}
		}
		written = append(written, e.Name)
	}

	if len(written) == 0 {
		zw.Close()
		return nil, nil, &ArchiveError{Reason: "no non-empty entries to write"}
	}
	if err := zw.Close(); err != nil {
		return nil, nil, &ArchiveError{Reason: "finalize", Err: err}
	}
	return buf.Bytes(), written, nil
}
