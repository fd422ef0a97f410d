package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidCubeShape reports a cube whose declared dimension sizes do not
// multiply out to the length of its value array. The decode cannot proceed:
// every coordinate mapping past the mismatch would silently misattribute values.
var ErrInvalidCubeShape = errors.New("cube shape does not match value array length")

// Cube is a JSON-stat style dataset as served by the Eurostat dissemination
// API: an ordered dimension list, parallel cardinalities, per-dimension
// category metadata, and one flat value array in row-major order with the
// last dimension varying fastest.
type Cube struct {
	ID        []string             `json:"id"`
	Size      []int                `json:"size"`
	Dimension map[string]Dimension `json:"dimension"`
	Value     []*float64           `json:"value"`

	// Status is a sparse annotation map keyed by flat index as text,
	// e.g. {"4": "e"} marks cell 4 as estimated.
	Status map[string]string `json:"status,omitempty"`
}

// Dimension holds the category metadata for a single cube dimension.
type Dimension struct {
	Category Category `json:"category"`
}

// Category maps member codes to their position in the dimension and,
// optionally, to human-readable labels.
type Category struct {
	Index map[string]int    `json:"index"`
	Label map[string]string `json:"label"`
}

// Validate checks the shape precondition for decoding: the product of the
// declared sizes must equal the number of cells.
func (c *Cube) Validate() error {
	if len(c.ID) != len(c.Size) {
		return fmt.Errorf("%w: %d dimension names, %d sizes", ErrInvalidCubeShape, len(c.ID), len(c.Size))
	}
	cells := 1
	for _, size := range c.Size {
		if size <= 0 {
			return fmt.Errorf("%w: non-positive dimension size %d", ErrInvalidCubeShape, size)
		}
		cells *= size
	}
	if cells != len(c.Value) {
		return fmt.Errorf("%w: sizes multiply to %d, value array has %d", ErrInvalidCubeShape, cells, len(c.Value))
	}
	return nil
}

// FlatRecord is one decoded cube cell: the category code and label for each
// dimension that has metadata, plus the cell value and status annotation.
// Dimensions without metadata are absent from both maps.
type FlatRecord struct {
	Dims   map[string]string
	Labels map[string]string
	Value  *float64
	Status string
}
