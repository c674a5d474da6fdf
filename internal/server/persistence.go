package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrUserNotFound = errors.New("PENGGUNA_TIDAK_DITEMUKAN: user not found")

// User mirrors one pengguna row.
type User struct {
	ID            int64
	Nama          string
	Email         string
	Password      string
	TotalSkor     int
	TanggalDaftar time.Time
	TerakhirLogin sql.NullTime
}

// ScoreRecord is one completed game, as persisted.
type ScoreRecord struct {
	UserID           int64
	Skor             int
	TingkatKesulitan string
	UkuranGrid       int
	WaktuDetik       int
}

// PersistenceManager handles the score ledger and user records in Postgres.
type PersistenceManager struct {
	db *sql.DB
}

func NewPersistenceManager(db *sql.DB) *PersistenceManager {
	return &PersistenceManager{db: db}
}

// CreateUser inserts a new user and returns its id.
func (pm *PersistenceManager) CreateUser(ctx context.Context, nama, email, password string) (int64, error) {
	query := `
		INSERT INTO pengguna (nama, email, password, total_skor, tanggal_daftar)
		VALUES ($1, $2, $3, 0, now())
		RETURNING id
	`

	var id int64
	if err := pm.db.QueryRowContext(ctx, query, nama, email, password).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert user %s: %w", nama, err)
	}
	return id, nil
}

// UserByEmail loads a user by email, ErrUserNotFound when absent.
func (pm *PersistenceManager) UserByEmail(ctx context.Context, email string) (*User, error) {
	return pm.userBy(ctx, "email", email)
}

// UserByName loads a user by display name, ErrUserNotFound when absent.
func (pm *PersistenceManager) UserByName(ctx context.Context, nama string) (*User, error) {
	return pm.userBy(ctx, "nama", nama)
}

func (pm *PersistenceManager) userBy(ctx context.Context, column, value string) (*User, error) {
	query := fmt.Sprintf(`
		SELECT id, nama, email, password, total_skor, tanggal_daftar, terakhir_login
		FROM pengguna WHERE %s = $1
	`, column)

	var u User
	err := pm.db.QueryRowContext(ctx, query, value).Scan(
		&u.ID,
		&u.Nama,
		&u.Email,
		&u.Password,
		&u.TotalSkor,
		&u.TanggalDaftar,
		&u.TerakhirLogin,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user by %s: %w", column, err)
	}
	return &u, nil
}

// TouchLastLogin records a successful login.
func (pm *PersistenceManager) TouchLastLogin(ctx context.Context, userID int64) error {
	query := `UPDATE pengguna SET terakhir_login = now() WHERE id = $1`

	if _, err := pm.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("update last login for user %d: %w", userID, err)
	}
	return nil
}

// SaveScore inserts one completed-game row.
func (pm *PersistenceManager) SaveScore(ctx context.Context, rec ScoreRecord) error {
	query := `
		INSERT INTO skor_permainan (id_pengguna, skor, tingkat_kesulitan, ukuran_grid, waktu_detik, tanggal)
		VALUES ($1, $2, $3, $4, $5, now())
	`

	_, err := pm.db.ExecContext(ctx, query,
		rec.UserID,
		rec.Skor,
		rec.TingkatKesulitan,
		rec.UkuranGrid,
		rec.WaktuDetik,
	)
	if err != nil {
		return fmt.Errorf("insert score for user %d: %w", rec.UserID, err)
	}
	return nil
}

// RecalcTotalScore recomputes and stores the user's running total from all
// their game rows, returning the new total. The leaderboard does not rank
// this figure (it ranks individual games); the total lives on the user row
// for profile display.
func (pm *PersistenceManager) RecalcTotalScore(ctx context.Context, userID int64) (int, error) {
	query := `
		UPDATE pengguna
		SET total_skor = COALESCE((SELECT SUM(skor) FROM skor_permainan WHERE id_pengguna = $1), 0)
		WHERE id = $1
		RETURNING total_skor
	`

	var total int
	if err := pm.db.QueryRowContext(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("recalc total score for user %d: %w", userID, err)
	}
	return total, nil
}

// Leaderboard returns the top limit game rows joined to their players, ranked
// by score descending (ties broken by most recent).
func (pm *PersistenceManager) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	query := `
		SELECT p.nama, s.skor, s.waktu_detik, s.tingkat_kesulitan, s.ukuran_grid, s.tanggal
		FROM skor_permainan s
		JOIN pengguna p ON p.id = s.id_pengguna
		ORDER BY s.skor DESC, s.tanggal DESC
		LIMIT $1
	`

	rows, err := pm.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.NamaPemain, &e.Skor, &e.WaktuDetik, &e.TingkatKesulitan, &e.UkuranGrid, &e.Tanggal); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard rows: %w", err)
	}

	return entries, nil
}
