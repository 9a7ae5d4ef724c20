package transform

import (
	"bytes"
	"fmt"
	"sort"
)

// edit replaces src[off:end] with text. Insertions have off == end.
type edit struct {
	off, end int
	text     string
}

// applyEdits splices edits into src. Edits at the same offset keep the order
// in which they were added.
func applyEdits(src []byte, edits []edit) ([]byte, error) {
	sorted := make([]edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].off < sorted[j].off })

	var buf bytes.Buffer
	buf.Grow(len(src) + 512)
	prev := 0
	for _, e := range sorted {
		if e.off < prev || e.end < e.off || e.end > len(src) {
			return nil, fmt.Errorf("transform: overlapping edit at offset %d", e.off)
		}
		buf.Write(src[prev:e.off])
		buf.WriteString(e.text)
		prev = e.end
	}
	buf.Write(src[prev:])
	return buf.Bytes(), nil
}
