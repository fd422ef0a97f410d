package domain

import (
	"iter"
	"strconv"
)

// IndexToCoords converts a flat cell index into per-dimension coordinates.
// The value array is row-major with the last dimension varying fastest, so
// the walk runs from the last size to the first and the collected coordinates
// are reversed to restore declaration order.
func IndexToCoords(index int, sizes []int) []int {
	coords := make([]int, len(sizes))
	for i := len(sizes) - 1; i >= 0; i-- {
		coords[i] = index % sizes[i]
		index /= sizes[i]
	}
	return coords
}

// CoordsToIndex is the inverse of IndexToCoords under the same
// last-dimension-fastest convention.
func CoordsToIndex(coords, sizes []int) int {
	index := 0
	for i := range sizes {
		index = index*sizes[i] + coords[i]
	}
	return index
}

// DecodeCube yields one FlatRecord per cube cell in flat-index order.
// The sequence is lazy; re-invoking DecodeCube replays the decode.
//
// Callers must Validate the cube first: DecodeCube assumes the shape
// precondition holds. Dimensions declared in cube.ID without a metadata
// entry are omitted from the record maps rather than failing the decode,
// so downstream consumers must tolerate missing keys.
func DecodeCube(cube *Cube) iter.Seq[FlatRecord] {
	// Precompute position -> code lookups so the per-cell reverse search of
	// the category index map runs once per dimension, not once per cell.
	codesByPos := make([]map[int]string, len(cube.ID))
	for i, dim := range cube.ID {
		meta, ok := cube.Dimension[dim]
		if !ok {
			continue
		}
		byPos := make(map[int]string, len(meta.Category.Index))
		for code, pos := range meta.Category.Index {
			byPos[pos] = code
		}
		codesByPos[i] = byPos
	}

	return func(yield func(FlatRecord) bool) {
		for idx, value := range cube.Value {
			coords := IndexToCoords(idx, cube.Size)
			rec := FlatRecord{
				Dims:   make(map[string]string, len(cube.ID)),
				Labels: make(map[string]string, len(cube.ID)),
				Value:  value,
				Status: cube.Status[statusKey(idx)],
			}
			for i, dim := range cube.ID {
				if codesByPos[i] == nil {
					continue
				}
				code, ok := codesByPos[i][coords[i]]
				if !ok {
					continue
				}
				rec.Dims[dim] = code
				rec.Labels[dim] = labelOrCode(cube.Dimension[dim].Category.Label, code)
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// statusKey renders a flat index the way JSON-stat keys its status map:
// as the decimal index in text form.
func statusKey(idx int) string {
	return strconv.Itoa(idx)
}

func labelOrCode(labels map[string]string, code string) string {
	if label, ok := labels[code]; ok {
		return label
	}
	return code
}
