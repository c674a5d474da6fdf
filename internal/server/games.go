package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"puzzle-server/internal/puzzle"
)

var ErrGameNotFound = errors.New("PERMAINAN_TIDAK_DITEMUKAN: game not found")

// ActiveGame is one server-hosted board plus the request-level bookkeeping
// around it. The Board carries its own lock, so every placement is one
// critical section per instance; the manager lock only guards the registry.
// UpdatedAt is written by request handlers and read by the sweep goroutine,
// so it gets its own lock.
type ActiveGame struct {
	ID               string
	UserID           int64
	Board            *puzzle.Board
	IDCache          string
	TingkatKesulitan string
	CreatedAt        time.Time

	UpdatedAt time.Time // guarded by mu
	mu        sync.Mutex
}

// Touch refreshes the idle timestamp. Called on every operation against the
// game so CleanupIdle only reaps abandoned boards.
func (g *ActiveGame) Touch() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.UpdatedAt = time.Now()
}

// LastActivity reads the idle timestamp.
func (g *ActiveGame) LastActivity() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.UpdatedAt
}

type GameManager struct {
	games         map[string]*ActiveGame
	pointsPerTile int
	mu            sync.RWMutex
}

func NewGameManager(pointsPerTile int) *GameManager {
	if pointsPerTile <= 0 {
		pointsPerTile = puzzle.DefaultPointsPerTile
	}
	return &GameManager{
		games:         make(map[string]*ActiveGame),
		pointsPerTile: pointsPerTile,
	}
}

func (gm *GameManager) PointsPerTile() int {
	return gm.pointsPerTile
}

// CreateGame builds a shuffled board for the user and registers it under a
// fresh game id. The cache id is carried for the client's tile rendering; the
// cache itself resolves (or rejects) it at render time.
func (gm *GameManager) CreateGame(userID int64, gridSize int, idCache, tingkatKesulitan string) (*ActiveGame, error) {
	board, err := puzzle.NewBoard(gridSize, gm.pointsPerTile, nil, nil)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	game := &ActiveGame{
		ID:               uuid.New().String(),
		UserID:           userID,
		Board:            board,
		IDCache:          idCache,
		TingkatKesulitan: tingkatKesulitan,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	gm.mu.Lock()
	gm.games[game.ID] = game
	gm.mu.Unlock()

	return game, nil
}

// GetGame looks up a game by id, restricted to its owning user.
func (gm *GameManager) GetGame(id string, userID int64) (*ActiveGame, error) {
	gm.mu.RLock()
	game, exists := gm.games[id]
	gm.mu.RUnlock()

	if !exists || game.UserID != userID {
		// Hide other users' game ids the same way as unknown ones.
		return nil, ErrGameNotFound
	}
	return game, nil
}

// RemoveGame drops a game from the registry. Removing an unknown id is a
// no-op.
func (gm *GameManager) RemoveGame(id string) {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	delete(gm.games, id)
}

// CleanupIdle deletes games that have seen no operation for longer than
// olderThan and reports how many were removed.
func (gm *GameManager) CleanupIdle(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	gm.mu.Lock()
	defer gm.mu.Unlock()

	removed := 0
	for id, game := range gm.games {
		if game.LastActivity().Before(cutoff) {
			delete(gm.games, id)
			removed++
		}
	}
	return removed
}

// Count reports the number of registered games.
func (gm *GameManager) Count() int {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return len(gm.games)
}
