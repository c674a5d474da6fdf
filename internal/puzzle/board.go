package puzzle

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

var (
	ErrSlotFilled   = errors.New("SLOT_TERISI: slot already holds a tile")
	ErrTileNotFound = errors.New("TILE_TIDAK_DITEMUKAN: tile is not part of this puzzle")
	ErrWrongSlot    = errors.New("POSISI_TIDAK_SESUAI: tile does not belong in this slot")
	ErrNoEmptySlots = errors.New("TIDAK_ADA_SLOT_KOSONG: every slot is filled")
)

// Board is the placement state machine for one puzzle instance:
// empty -> partially filled -> complete (terminal until Reset).
//
// A placement either fully commits (slot filled, score updated, completion
// checked) or leaves the board untouched. All methods are safe for concurrent
// use; each call is one critical section, so two placements for the same
// instance can never lose an update.
type Board struct {
	mu sync.Mutex

	gridSize      int
	pointsPerTile int
	tiles         map[string]Tile
	order         []Tile   // presentation order, reshuffled on Reset
	slots         []string // slot index -> tile id, "" while empty
	placed        int
	score         int

	rng *rand.Rand
	now func() time.Time

	// Timer state. elapsed accumulates finished run segments; startedAt marks
	// the current segment while running.
	startedAt time.Time
	elapsed   time.Duration
	running   bool
	complete  bool
}

// Snapshot is the externally visible board state after an operation.
type Snapshot struct {
	GridSize       int
	Placed         int
	Score          int
	Complete       bool
	ElapsedSeconds int
}

// NewBoard generates and shuffles the tile set for gridSize and starts the
// timer. pointsPerTile <= 0 falls back to DefaultPointsPerTile. rng and now
// may be nil, in which case a time-seeded source and the wall clock are used.
func NewBoard(gridSize, pointsPerTile int, rng *rand.Rand, now func() time.Time) (*Board, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	if pointsPerTile <= 0 {
		pointsPerTile = DefaultPointsPerTile
	}

	tiles, err := Generate(gridSize, rng)
	if err != nil {
		return nil, err
	}

	b := &Board{
		gridSize:      gridSize,
		pointsPerTile: pointsPerTile,
		tiles:         make(map[string]Tile, len(tiles)),
		order:         tiles,
		slots:         make([]string, gridSize*gridSize),
		rng:           rng,
		now:           now,
	}
	for _, t := range tiles {
		b.tiles[t.ID] = t
	}

	b.startedAt = now()
	b.running = true

	return b, nil
}

// Place attempts to put tileID into slot. Rejections (ErrSlotFilled,
// ErrTileNotFound, ErrWrongSlot) never mutate state; the tile stays available
// for retry. An accepted placement fills the slot, adds pointsPerTile to the
// score and, once every slot is filled, transitions to the terminal complete
// state and stops the timer.
func (b *Board) Place(tileID string, slot int) (Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if slot < 0 || slot >= len(b.slots) {
		return b.snapshotLocked(), ErrWrongSlot
	}
	if b.slots[slot] != "" {
		return b.snapshotLocked(), ErrSlotFilled
	}
	tile, ok := b.tiles[tileID]
	if !ok {
		return b.snapshotLocked(), ErrTileNotFound
	}
	if tile.TargetSlot != slot {
		return b.snapshotLocked(), ErrWrongSlot
	}

	b.slots[slot] = tileID
	b.placed++
	b.score += b.pointsPerTile

	if b.placed == len(b.slots) {
		b.complete = true
		b.stopTimerLocked()
	}

	return b.snapshotLocked(), nil
}

// Reset returns the board to empty from any state: slots cleared, the same
// tile set reshuffled into a new presentation order, score and elapsed time
// zeroed, timer restarted.
func (b *Board) Reset() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.slots {
		b.slots[i] = ""
	}
	b.placed = 0
	b.score = 0
	b.complete = false
	Shuffle(b.order, b.rng)

	b.elapsed = 0
	b.startedAt = b.now()
	b.running = true

	return b.snapshotLocked()
}

// Hint picks a uniformly random empty slot without mutating the board.
// At the complete state it reports ErrNoEmptySlots.
func (b *Board) Hint() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	empty := make([]int, 0, len(b.slots)-b.placed)
	for i, id := range b.slots {
		if id == "" {
			empty = append(empty, i)
		}
	}
	if len(empty) == 0 {
		return -1, ErrNoEmptySlots
	}
	return empty[b.rng.Intn(len(empty))], nil
}

// Pause suspends the elapsed-time counter without resetting it. Pausing a
// paused or complete board is a no-op.
func (b *Board) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopTimerLocked()
}

// Resume restarts the counter after a Pause. Complete boards stay stopped.
func (b *Board) Resume() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running || b.complete {
		return
	}
	b.startedAt = b.now()
	b.running = true
}

// Tiles returns the current presentation order.
func (b *Board) Tiles() []Tile {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Tile, len(b.order))
	copy(out, b.order)
	return out
}

// Slots returns the slot occupancy ("" = empty).
func (b *Board) Slots() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.slots))
	copy(out, b.slots)
	return out
}

func (b *Board) GridSize() int { return b.gridSize }

func (b *Board) Score() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.score
}

func (b *Board) Complete() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.complete
}

// ElapsedSeconds reports whole seconds of wall-clock play time, excluding
// paused stretches.
func (b *Board) ElapsedSeconds() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.elapsedSecondsLocked()
}

func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Board) stopTimerLocked() {
	if !b.running {
		return
	}
	b.elapsed += b.now().Sub(b.startedAt)
	b.running = false
}

func (b *Board) elapsedSecondsLocked() int {
	total := b.elapsed
	if b.running {
		total += b.now().Sub(b.startedAt)
	}
	return int(total / time.Second)
}

func (b *Board) snapshotLocked() Snapshot {
	return Snapshot{
		GridSize:       b.gridSize,
		Placed:         b.placed,
		Score:          b.score,
		Complete:       b.complete,
		ElapsedSeconds: b.elapsedSecondsLocked(),
	}
}
