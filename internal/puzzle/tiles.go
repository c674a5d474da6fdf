package puzzle

import (
	"errors"
	"fmt"
	"math/rand"
)

const (
	// MinGridSize and MaxGridSize bound custom difficulties. The presets
	// (3, 4, 5) fall inside this range.
	MinGridSize = 2
	MaxGridSize = 8

	// DefaultPointsPerTile is awarded for every accepted placement.
	DefaultPointsPerTile = 10
)

var ErrInvalidGridSize = errors.New("INVALID_GRID_SIZE: grid size must be between 2 and 8")

// Tile is one square region of the source image. TargetSlot is the only slot
// at which placing this tile succeeds; it is assigned at generation time and
// never changes, shuffling reorders the tile list only.
type Tile struct {
	ID         string `json:"id"`
	TargetSlot int    `json:"posisiTarget"`
	SourceRow  int    `json:"baris"`
	SourceCol  int    `json:"kolom"`
}

// Generate emits gridSize² tiles in raster order (targetSlot = row*n + col),
// then shuffles their presentation order. The random source is injected so
// generation is deterministic under test; rng must not be nil.
func Generate(gridSize int, rng *rand.Rand) ([]Tile, error) {
	if gridSize < MinGridSize || gridSize > MaxGridSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidGridSize, gridSize)
	}

	tiles := make([]Tile, 0, gridSize*gridSize)
	for row := 0; row < gridSize; row++ {
		for col := 0; col < gridSize; col++ {
			slot := row*gridSize + col
			tiles = append(tiles, Tile{
				ID:         fmt.Sprintf("tile-%d", slot),
				TargetSlot: slot,
				SourceRow:  row,
				SourceCol:  col,
			})
		}
	}

	Shuffle(tiles, rng)
	return tiles, nil
}

// Shuffle applies a uniform Fisher-Yates permutation to the presentation
// order. Tile fields are never touched.
func Shuffle(tiles []Tile, rng *rand.Rand) {
	for i := len(tiles) - 1; i >= 1; i-- {
		j := rng.Intn(i + 1)
		tiles[i], tiles[j] = tiles[j], tiles[i]
	}
}
