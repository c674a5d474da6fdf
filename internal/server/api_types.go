package server

import (
	"encoding/json"
	"time"

	"puzzle-server/internal/puzzle"
)

// The wire contract (field names, routes, messages) is Indonesian; it is the
// published API of the game client and must not drift.

// APIResponse is the envelope every JSON endpoint returns.
type APIResponse struct {
	Sukses bool   `json:"sukses"`
	Pesan  string `json:"pesan,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ============================================================================
// AUTH
// ============================================================================

type RegisterRequest struct {
	Nama     string `json:"nama"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginData struct {
	SesiID string `json:"sesiId"`
	Nama   string `json:"nama"`
	Email  string `json:"email"`
}

type LogoutRequest struct {
	SesiID string `json:"sesiId"`
}

// ============================================================================
// IMAGES
// ============================================================================

type RandomImageData struct {
	IDGambar   string `json:"idGambar"`
	IDCache    string `json:"idCache"`
	URLGambar  string `json:"urlGambar"`
	Fotografer string `json:"fotografer"`
}

// ============================================================================
// SCORES & LEADERBOARD
// ============================================================================

type SaveScoreRequest struct {
	SesiID           string `json:"sesiId"`
	TingkatKesulitan string `json:"tingkatKesulitan"`
	Skor             int    `json:"skor"`
	WaktuDetik       int    `json:"waktuDetik"`
	UkuranGrid       int    `json:"ukuranGrid"`
}

type LeaderboardEntry struct {
	Rank             int       `json:"rank"`
	NamaPemain       string    `json:"nama_pemain"`
	Skor             int       `json:"skor"`
	WaktuDetik       int       `json:"waktu_detik"`
	TingkatKesulitan string    `json:"tingkat_kesulitan"`
	UkuranGrid       int       `json:"ukuran_grid"`
	Tanggal          time.Time `json:"tanggal"`
}

// ============================================================================
// SERVER-SIDE GAMES
// ============================================================================

type CreateGameRequest struct {
	SesiID           string `json:"sesiId"`
	UkuranGrid       int    `json:"ukuranGrid"`
	IDCache          string `json:"idCache"`
	TingkatKesulitan string `json:"tingkatKesulitan"`
}

type CreateGameData struct {
	IDPermainan string        `json:"idPermainan"`
	UkuranGrid  int           `json:"ukuranGrid"`
	Tiles       []puzzle.Tile `json:"tiles"`
}

type PlaceTileRequest struct {
	SesiID string `json:"sesiId"`
	IDTile string `json:"idTile"`
	Slot   int    `json:"slot"`
}

// PlaceTileData reports the outcome of a placement attempt. Rejected attempts
// are normal gameplay, not errors: Diterima is false and Alasan carries the
// rejection code.
type PlaceTileData struct {
	Diterima   bool   `json:"diterima"`
	Alasan     string `json:"alasan,omitempty"`
	Skor       int    `json:"skor"`
	Terpasang  int    `json:"terpasang"`
	Selesai    bool   `json:"selesai"`
	WaktuDetik int    `json:"waktuDetik"`
}

type GameStateData struct {
	Skor       int           `json:"skor"`
	Terpasang  int           `json:"terpasang"`
	Selesai    bool          `json:"selesai"`
	WaktuDetik int           `json:"waktuDetik"`
	Tiles      []puzzle.Tile `json:"tiles,omitempty"`
}

type HintData struct {
	Slot int `json:"slot"`
}

type PauseRequest struct {
	SesiID string `json:"sesiId"`
	Jeda   bool   `json:"jeda"`
}

// GameActionRequest covers game operations that need nothing beyond the
// session token.
type GameActionRequest struct {
	SesiID string `json:"sesiId"`
}

// ============================================================================
// WEBSOCKET MESSAGES
// ============================================================================

type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type UserLoginPayload struct {
	Nama  string `json:"nama"`
	Email string `json:"email"`
}

type ScoreSavedPayload struct {
	NamaPemain       string `json:"nama_pemain"`
	Skor             int    `json:"skor"`
	WaktuDetik       int    `json:"waktu_detik"`
	TingkatKesulitan string `json:"tingkat_kesulitan"`
}

type LeaderboardUpdatePayload struct {
	NamaPemain       string `json:"nama_pemain"`
	Skor             int    `json:"skor"`
	WaktuDetik       int    `json:"waktu_detik"`
	TingkatKesulitan string `json:"tingkat_kesulitan"`
	Message          string `json:"message"`
}

type OnlineCountPayload struct {
	OnlineCount int `json:"onlineCount"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
