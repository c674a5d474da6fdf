package puzzle

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when told to, so timer assertions are exact.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 12, 17, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBoard(t *testing.T, gridSize int) (*Board, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	b, err := NewBoard(gridSize, DefaultPointsPerTile, rand.New(rand.NewSource(1)), clock.now)
	require.NoError(t, err)
	return b, clock
}

func TestBoard_ScenarioThreeByThree(t *testing.T) {
	b, _ := newTestBoard(t, 3)

	// Correct placement: tile-0 belongs at slot 0.
	snap, err := b.Place("tile-0", 0)
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Score)
	assert.Equal(t, 1, snap.Placed)
	assert.False(t, snap.Complete)

	// Same tile at slot 1 is rejected and nothing changes.
	snap, err = b.Place("tile-0", 1)
	assert.ErrorIs(t, err, ErrWrongSlot)
	assert.Equal(t, 10, snap.Score)
	assert.Equal(t, 1, snap.Placed)

	// Fill the remaining slots in arbitrary order.
	for _, slot := range []int{5, 3, 8, 1, 7, 2, 6, 4} {
		_, err := b.Place(tileFor(slot), slot)
		require.NoError(t, err)
	}

	snap = b.Snapshot()
	assert.True(t, snap.Complete)
	assert.Equal(t, 90, snap.Score)
}

func tileFor(slot int) string {
	return fmt.Sprintf("tile-%d", slot)
}

func TestBoard_RejectionsDoNotMutate(t *testing.T) {
	b, _ := newTestBoard(t, 3)

	// Incorrect placement twice in a row: rejected both times, no state change.
	for i := 0; i < 2; i++ {
		snap, err := b.Place("tile-4", 0)
		assert.ErrorIs(t, err, ErrWrongSlot)
		assert.Equal(t, 0, snap.Score)
		assert.Equal(t, 0, snap.Placed)
	}

	// Unknown tile.
	_, err := b.Place("tile-99", 0)
	assert.ErrorIs(t, err, ErrTileNotFound)

	// Occupied slot wins over the wrong-slot check.
	_, err = b.Place("tile-0", 0)
	require.NoError(t, err)
	_, err = b.Place("tile-1", 0)
	assert.ErrorIs(t, err, ErrSlotFilled)

	// Out-of-range slot indexes are plain rejections.
	_, err = b.Place("tile-1", 9)
	assert.ErrorIs(t, err, ErrWrongSlot)
	_, err = b.Place("tile-1", -1)
	assert.ErrorIs(t, err, ErrWrongSlot)
}

func TestBoard_CompleteIsTerminal(t *testing.T) {
	b, _ := newTestBoard(t, 2)

	for slot := 0; slot < 4; slot++ {
		_, err := b.Place(tileFor(slot), slot)
		require.NoError(t, err)
	}
	require.True(t, b.Complete())

	// Every slot is filled, so any further placement is rejected.
	snap, err := b.Place("tile-0", 0)
	assert.ErrorIs(t, err, ErrSlotFilled)
	assert.Equal(t, 40, snap.Score)
}

func TestBoard_Reset(t *testing.T) {
	b, clock := newTestBoard(t, 3)
	orderBefore := b.Tiles()

	_, err := b.Place("tile-0", 0)
	require.NoError(t, err)
	clock.advance(42 * time.Second)

	snap := b.Reset()
	assert.Equal(t, 0, snap.Score)
	assert.Equal(t, 0, snap.Placed)
	assert.False(t, snap.Complete)
	assert.Equal(t, 0, snap.ElapsedSeconds)

	for _, id := range b.Slots() {
		assert.Empty(t, id)
	}

	// Same tile set after reshuffle.
	orderAfter := b.Tiles()
	require.Len(t, orderAfter, len(orderBefore))
	before := make(map[Tile]bool, len(orderBefore))
	for _, tile := range orderBefore {
		before[tile] = true
	}
	for _, tile := range orderAfter {
		assert.True(t, before[tile])
	}

	// Timer restarted from zero.
	clock.advance(5 * time.Second)
	assert.Equal(t, 5, b.ElapsedSeconds())
}

func TestBoard_HintDistribution(t *testing.T) {
	b, _ := newTestBoard(t, 2)

	// Slots [filled, empty, empty, filled].
	_, err := b.Place("tile-0", 0)
	require.NoError(t, err)
	_, err = b.Place("tile-3", 3)
	require.NoError(t, err)

	seen := map[int]int{}
	for i := 0; i < 200; i++ {
		slot, err := b.Hint()
		require.NoError(t, err)
		assert.Contains(t, []int{1, 2}, slot)
		seen[slot]++
	}
	assert.Positive(t, seen[1], "slot 1 never suggested")
	assert.Positive(t, seen[2], "slot 2 never suggested")

	// Hint is a pure read.
	snap := b.Snapshot()
	assert.Equal(t, 2, snap.Placed)
	assert.Equal(t, 20, snap.Score)
}

func TestBoard_HintOnCompleteBoard(t *testing.T) {
	b, _ := newTestBoard(t, 2)
	for slot := 0; slot < 4; slot++ {
		_, err := b.Place(tileFor(slot), slot)
		require.NoError(t, err)
	}

	_, err := b.Hint()
	assert.ErrorIs(t, err, ErrNoEmptySlots)
}

func TestBoard_TimerPauseResumeAndCompletion(t *testing.T) {
	b, clock := newTestBoard(t, 2)

	clock.advance(10 * time.Second)
	assert.Equal(t, 10, b.ElapsedSeconds())

	// Paused time does not count, and Pause does not reset.
	b.Pause()
	clock.advance(30 * time.Second)
	assert.Equal(t, 10, b.ElapsedSeconds())

	b.Resume()
	clock.advance(5 * time.Second)
	assert.Equal(t, 15, b.ElapsedSeconds())

	// Completion stops the clock permanently.
	for slot := 0; slot < 4; slot++ {
		_, err := b.Place(tileFor(slot), slot)
		require.NoError(t, err)
	}
	clock.advance(time.Hour)
	assert.Equal(t, 15, b.ElapsedSeconds())

	// Resume on a complete board stays stopped.
	b.Resume()
	clock.advance(time.Hour)
	assert.Equal(t, 15, b.ElapsedSeconds())
}

func TestBoard_ConcurrentPlacements(t *testing.T) {
	b, _ := newTestBoard(t, 8)

	done := make(chan bool)
	for w := 0; w < 8; w++ {
		go func() {
			for slot := 0; slot < 64; slot++ {
				b.Place(tileFor(slot), slot)
			}
			done <- true
		}()
	}
	for w := 0; w < 8; w++ {
		<-done
	}

	// Each slot accepted exactly one placement regardless of interleaving.
	snap := b.Snapshot()
	assert.True(t, snap.Complete)
	assert.Equal(t, 64*DefaultPointsPerTile, snap.Score)
}
