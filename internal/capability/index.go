package capability

import (
	"sort"

	"github.com/smazurov/capturecfg/internal/formats"
)

// Index is a normalized, queryable view over one capability snapshot.
// All query results are produced by explicit stable sorts so the same
// snapshot always yields the same answers. Queries on missing data return
// empty collections; a device with zero advertised formats is a valid
// state, not an error.
type Index struct {
	entries map[string][]Entry
	order   []string // formats by auto-selection priority
}

// NewIndex normalizes raw device capability data: per format it
// deduplicates (width, height) pairs, merges and descending-sorts their
// framerates, and orders entries by pixel count descending.
func NewIndex(caps DeviceCapabilities) *Index {
	idx := &Index{entries: make(map[string][]Entry, len(caps))}

	for format, raw := range caps {
		byRes := make(map[Resolution][]float64)
		for _, e := range raw {
			if e.Width == 0 || e.Height == 0 {
				continue
			}
			res := Resolution{Width: e.Width, Height: e.Height}
			for _, fps := range e.Framerates {
				if fps <= 0 {
					continue
				}
				byRes[res] = appendFPS(byRes[res], fps)
			}
		}

		entries := make([]Entry, 0, len(byRes))
		for res, rates := range byRes {
			sort.Slice(rates, func(i, j int) bool { return rates[i] > rates[j] })
			entries = append(entries, Entry{Width: res.Width, Height: res.Height, Framerates: rates})
		}
		sort.Slice(entries, func(i, j int) bool {
			pi := uint64(entries[i].Width) * uint64(entries[i].Height)
			pj := uint64(entries[j].Width) * uint64(entries[j].Height)
			if pi != pj {
				return pi > pj
			}
			return entries[i].Width > entries[j].Width
		})
		if len(entries) > 0 {
			idx.entries[format] = entries
			idx.order = append(idx.order, format)
		}
	}

	sort.Slice(idx.order, func(i, j int) bool {
		ri, rj := formats.Rank(idx.order[i]), formats.Rank(idx.order[j])
		if ri != rj {
			return ri < rj
		}
		return idx.order[i] < idx.order[j]
	})

	return idx
}

// Empty reports whether the device advertised no usable modes at all.
func (idx *Index) Empty() bool {
	return len(idx.order) == 0
}

// Formats returns every format in the snapshot, ordered by auto-selection
// priority (compressed before raw).
func (idx *Index) Formats() []string {
	out := make([]string, len(idx.order))
	copy(out, idx.order)
	return out
}

// EntriesFor returns the normalized entries of one format, or an empty
// slice for an unknown format.
func (idx *Index) EntriesFor(format string) []Entry {
	entries, ok := idx.entries[format]
	if !ok {
		return nil
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// ResolutionsUnion returns every resolution offered by any format,
// deduplicated and sorted by pixel count descending.
func (idx *Index) ResolutionsUnion() []Resolution {
	seen := make(map[Resolution]bool)
	var out []Resolution
	for _, format := range idx.order {
		for _, e := range idx.entries[format] {
			res := Resolution{Width: e.Width, Height: e.Height}
			if !seen[res] {
				seen[res] = true
				out = append(out, res)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pixels() != out[j].Pixels() {
			return out[i].Pixels() > out[j].Pixels()
		}
		return out[i].Width > out[j].Width
	})
	return out
}

// FramerateUnion returns every framerate offered at the given resolution
// across all formats, deduplicated and sorted descending.
func (idx *Index) FramerateUnion(width, height uint32) []float64 {
	var out []float64
	for _, format := range idx.order {
		for _, e := range idx.entries[format] {
			if e.Width != width || e.Height != height {
				continue
			}
			for _, fps := range e.Framerates {
				out = appendFPS(out, fps)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}

// FormatsAt returns the formats offering the exact (resolution, fps)
// tuple, in priority order.
func (idx *Index) FormatsAt(width, height uint32, fps float64) []string {
	var out []string
	for _, format := range idx.order {
		if idx.offers(format, width, height, fps) {
			out = append(out, format)
		}
	}
	return out
}

// Offers reports whether one format offers the (resolution, fps) tuple.
func (idx *Index) Offers(format string, width, height uint32, fps float64) bool {
	return idx.offers(format, width, height, fps)
}

// HasResolution reports whether any format offers the resolution.
func (idx *Index) HasResolution(width, height uint32) bool {
	for _, format := range idx.order {
		for _, e := range idx.entries[format] {
			if e.Width == width && e.Height == height {
				return true
			}
		}
	}
	return false
}

func (idx *Index) offers(format string, width, height uint32, fps float64) bool {
	for _, e := range idx.entries[format] {
		if e.Width != width || e.Height != height {
			continue
		}
		for _, advertised := range e.Framerates {
			if SameFPS(fps, advertised) {
				return true
			}
		}
	}
	return false
}

// appendFPS adds fps to the list unless an equal value (within exact
// tolerance) is already present.
func appendFPS(list []float64, fps float64) []float64 {
	for _, existing := range list {
		if SameFPS(existing, fps) {
			return list
		}
	}
	return append(list, fps)
}
