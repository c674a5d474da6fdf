package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/julienschmidt/httprouter"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/crypto/bcrypt"

	"puzzle-server/internal/database"
	"puzzle-server/internal/imaging"
	"puzzle-server/internal/puzzle"
	"puzzle-server/internal/session"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
	pgUniqueViolation       = "23505"
)

var validDifficulties = map[string]bool{
	"mudah":  true,
	"sedang": true,
	"sulit":  true,
}

func (s *Server) RegisterRoutes() http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/", s.appInfoHandler)
	router.HandlerFunc(http.MethodGet, "/health", s.healthHandler)
	router.HandlerFunc(http.MethodGet, "/websocket", s.websocketHandler)
	router.HandlerFunc(http.MethodGet, "/api/qr", s.qrHandler)

	router.HandlerFunc(http.MethodGet, "/api/gambar-acak", s.randomImageHandler)
	router.GET("/api/gambar/:idCache", s.cachedImageHandler)

	router.HandlerFunc(http.MethodPost, "/api/daftar", s.registerHandler)
	router.HandlerFunc(http.MethodPost, "/api/masuk", s.loginHandler)
	router.HandlerFunc(http.MethodPost, "/api/keluar", s.logoutHandler)

	router.HandlerFunc(http.MethodPost, "/api/simpan-skor", s.saveScoreHandler)
	router.HandlerFunc(http.MethodGet, "/api/papan-peringkat", s.leaderboardHandler)

	router.HandlerFunc(http.MethodPost, "/api/permainan", s.createGameHandler)
	router.GET("/api/permainan/:id", s.gameStateHandler)
	router.POST("/api/permainan/:id/tempatkan", s.placeTileHandler)
	router.POST("/api/permainan/:id/reset", s.resetGameHandler)
	router.GET("/api/permainan/:id/hint", s.hintHandler)
	router.POST("/api/permainan/:id/jeda", s.pauseGameHandler)

	return s.corsMiddleware(router)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // Replace "*" with specific origins if needed
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warnf("failed to write response: %v", err)
	}
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, APIResponse{Sukses: false, Pesan: "Format permintaan tidak valid"})
		return false
	}
	return true
}

// authenticate resolves a session token to its identity, writing the 401
// response itself when the token is missing or expired.
func (s *Server) authenticate(w http.ResponseWriter, sesiID string) (session.Identity, bool) {
	identity, err := s.sessionManager.Lookup(sesiID)
	if err != nil {
		s.writeJSON(w, http.StatusUnauthorized, APIResponse{Sukses: false, Pesan: "Sesi tidak valid"})
		return session.Identity{}, false
	}
	return identity, true
}

func (s *Server) appInfoHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, APIResponse{
		Sukses: true,
		Pesan:  "Puzzle server siap",
		Data: map[string]string{
			"nama":  "puzzle-server",
			"versi": "1.0.0",
		},
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := json.Marshal(database.Health(r.Context(), s.db))
	if err != nil {
		http.Error(w, "Failed to marshal health check response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		s.log.Warnf("failed to write response: %v", err)
	}
}

// qrHandler renders the public URL as a PNG QR code so players can join from
// a phone by scanning the host's screen.
func (s *Server) qrHandler(w http.ResponseWriter, r *http.Request) {
	png, err := qrcode.Encode(s.cfg.PublicURL, qrcode.Medium, 320)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, APIResponse{Sukses: false, Pesan: "Gagal membuat kode QR"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(png); err != nil {
		s.log.Warnf("failed to write QR response: %v", err)
	}
}

// ============================================================================
// IMAGES
// ============================================================================

func (s *Server) randomImageHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	photo := s.imageProvider.Random(ctx)

	raw, err := s.imageProvider.Download(ctx, photo.URL)
	if err != nil {
		s.log.Warnf("image download failed: %v", err)
		s.writeJSON(w, http.StatusBadGateway, APIResponse{Sukses: false, Pesan: "Gagal mengambil gambar"})
		return
	}

	cropped, err := imaging.CropSquare(raw)
	if err != nil {
		s.log.Warnf("image crop failed for photo %s: %v", photo.ID, err)
		s.writeJSON(w, http.StatusBadGateway, APIResponse{Sukses: false, Pesan: "Gagal memproses gambar"})
		return
	}

	idCache, err := s.imageCache.Put(photo.ID, cropped, "image/jpeg")
	if err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, APIResponse{Sukses: false, Pesan: "Cache gambar penuh"})
		return
	}

	s.writeJSON(w, http.StatusOK, APIResponse{
		Sukses: true,
		Data: RandomImageData{
			IDGambar:   photo.ID,
			IDCache:    idCache,
			URLGambar:  "/api/gambar/" + idCache,
			Fotografer: photo.Photographer,
		},
	})
}

func (s *Server) cachedImageHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	data, contentType, err := s.imageCache.Get(ps.ByName("idCache"))
	if err != nil {
		// Expired and never-existed are indistinguishable on purpose.
		s.writeJSON(w, http.StatusNotFound, APIResponse{Sukses: false, Pesan: "Gambar tidak ditemukan"})
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := w.Write(data); err != nil {
		s.log.Warnf("failed to write image response: %v", err)
	}
}

// ============================================================================
// AUTH
// ============================================================================

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if err := ValidatePlayerName(req.Nama); err != nil {
		s.writeJSON(w, http.StatusBadRequest, APIResponse{Sukses: false, Pesan: "Nama tidak valid"})
		return
	}
	if !strings.Contains(req.Email, "@") {
		s.writeJSON(w, http.StatusBadRequest, APIResponse{Sukses: false, Pesan: "Email tidak valid"})
		return
	}
	if len(req.Password) < 6 {
		s.writeJSON(w, http.StatusBadRequest, APIResponse{Sukses: false, Pesan: "Password minimal 6 karakter"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, APIResponse{Sukses: false, Pesan: "Pendaftaran gagal"})
		return
	}

	if _, err := s.persistenceManager.CreateUser(r.Context(), strings.TrimSpace(req.Nama), req.Email, string(hash)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			s.writeJSON(w, http.StatusConflict, APIResponse{Sukses: false, Pesan: "Nama atau email sudah terdaftar"})
			return
		}
		s.log.Errorf("create user failed: %v", err)
		s.writeJSON(w, http.StatusInternalServerError, APIResponse{Sukses: false, Pesan: "Pendaftaran gagal"})
		return
	}

	s.writeJSON(w, http.StatusCreated, APIResponse{Sukses: true, Pesan: "Pendaftaran berhasil"})
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	user, err := s.persistenceManager.UserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Same message as a wrong password so the endpoint does not
			// confirm which emails are registered.
			s.writeJSON(w, http.StatusUnauthorized, APIResponse{Sukses: false, Pesan: "Email atau password salah"})
			return
		}
		s.log.Errorf("login lookup failed: %v", err)
		s.writeJSON(w, http.StatusInternalServerError, APIResponse{Sukses: false, Pesan: "Masuk gagal"})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		s.writeJSON(w, http.StatusUnauthorized, APIResponse{Sukses: false, Pesan: "Email atau password salah"})
		return
	}

	if err := s.persistenceManager.TouchLastLogin(r.Context(), user.ID); err != nil {
		s.log.Warnf("touch last login failed for user %d: %v", user.ID, err)
	}

	token := s.sessionManager.Create(session.Identity{
		UserID: user.ID,
		Nama:   user.Nama,
		Email:  user.Email,
	})

	s.writeJSON(w, http.StatusOK, APIResponse{
		Sukses: true,
		Pesan:  "Berhasil masuk",
		Data: LoginData{
			SesiID: token,
			Nama:   user.Nama,
			Email:  user.Email,
		},
	})
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	// Destroying an unknown or already-expired token still succeeds.
	s.sessionManager.Destroy(req.SesiID)
	s.writeJSON(w, http.StatusOK, APIResponse{Sukses: true, Pesan: "Berhasil keluar"})
}

// ============================================================================
// SCORES & LEADERBOARD
// ============================================================================

func (s *Server) saveScoreHandler(w http.ResponseWriter, r *http.Request) {
	var req SaveScoreRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	identity, ok := s.authenticate(w, req.SesiID)
	if !ok {
		return
	}

	if !validDifficulties[req.TingkatKesulitan] {
		s.writeJSON(w, http.StatusBadRequest, APIResponse{Sukses: false, Pesan: "Tingkat kesulitan tidak valid"})
		return
	}
	if req.Skor < 0 || req.Skor%s.gameManager.PointsPerTile() != 0 {
		s.writeJSON(w, http.StatusBadRequest, APIResponse{Sukses: false, Pesan: "Skor tidak valid"})
		return
	}
	if req.WaktuDetik < 0 {
		s.writeJSON(w, http.StatusBadRequest, APIResponse{Sukses: false, Pesan: "Waktu tidak valid"})
		return
	}
	if req.UkuranGrid < puzzle.MinGridSize || req.UkuranGrid > puzzle.MaxGridSize {
		s.writeJSON(w, http.StatusBadRequest, APIResponse{Sukses: false, Pesan: "Ukuran grid tidak valid"})
		return
	}

	rec := ScoreRecord{
		UserID:           identity.UserID,
		Skor:             req.Skor,
		TingkatKesulitan: req.TingkatKesulitan,
		UkuranGrid:       req.UkuranGrid,
		WaktuDetik:       req.WaktuDetik,
	}
	if err := s.persistenceManager.SaveScore(r.Context(), rec); err != nil {
		s.log.Errorf("save score failed: %v", err)
		s.writeJSON(w, http.StatusInternalServerError, APIResponse{Sukses: false, Pesan: "Gagal menyimpan skor"})
		return
	}

	if _, err := s.persistenceManager.RecalcTotalScore(r.Context(), identity.UserID); err != nil {
		// The game row is already committed; the rollup catches up on the
		// player's next save.
		s.log.Warnf("recalc total score failed for user %d: %v", identity.UserID, err)
	}

	s.broadcastScoreSaved(ScoreSavedPayload{
		NamaPemain:       identity.Nama,
		Skor:             req.Skor,
		WaktuDetik:       req.WaktuDetik,
		TingkatKesulitan: req.TingkatKesulitan,
	})

	s.writeJSON(w, http.StatusCreated, APIResponse{Sukses: true, Pesan: "Skor berhasil disimpan"})
}

func (s *Server) leaderboardHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeJSON(w, http.StatusBadRequest, APIResponse{Sukses: false, Pesan: "Limit tidak valid"})
			return
		}
		if parsed > maxLeaderboardLimit {
			parsed = maxLeaderboardLimit
		}
		limit = parsed
	}

	entries, err := s.persistenceManager.Leaderboard(r.Context(), limit)
	if err != nil {
		s.log.Errorf("leaderboard query failed: %v", err)
		s.writeJSON(w, http.StatusInternalServerError, APIResponse{Sukses: false, Pesan: "Gagal memuat papan peringkat"})
		return
	}
	if entries == nil {
		entries = []LeaderboardEntry{}
	}

	s.writeJSON(w, http.StatusOK, APIResponse{Sukses: true, Data: entries})
}

// ============================================================================
// SERVER-SIDE GAMES
// ============================================================================

func (s *Server) createGameHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	identity, ok := s.authenticate(w, req.SesiID)
	if !ok {
		return
	}

	if req.UkuranGrid == 0 {
		req.UkuranGrid = 4
	}
	if req.TingkatKesulitan != "" && !validDifficulties[req.TingkatKesulitan] {
		s.writeJSON(w, http.StatusBadRequest, APIResponse{Sukses: false, Pesan: "Tingkat kesulitan tidak valid"})
		return
	}

	game, err := s.gameManager.CreateGame(identity.UserID, req.UkuranGrid, req.IDCache, req.TingkatKesulitan)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, APIResponse{Sukses: false, Pesan: "Ukuran grid tidak valid"})
		return
	}

	s.log.WithFields(map[string]any{
		"permainan": game.ID,
		"pengguna":  identity.UserID,
		"grid":      req.UkuranGrid,
	}).Info("game created")

	s.writeJSON(w, http.StatusCreated, APIResponse{
		Sukses: true,
		Data: CreateGameData{
			IDPermainan: game.ID,
			UkuranGrid:  game.Board.GridSize(),
			Tiles:       game.Board.Tiles(),
		},
	})
}

// lookupGame resolves the :id path parameter against the session's user,
// writing the 404 response itself on a miss.
func (s *Server) lookupGame(w http.ResponseWriter, ps httprouter.Params, userID int64) (*ActiveGame, bool) {
	game, err := s.gameManager.GetGame(ps.ByName("id"), userID)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, APIResponse{Sukses: false, Pesan: "Permainan tidak ditemukan"})
		return nil, false
	}
	return game, true
}

func (s *Server) placeTileHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req PlaceTileRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	identity, ok := s.authenticate(w, req.SesiID)
	if !ok {
		return
	}
	game, ok := s.lookupGame(w, ps, identity.UserID)
	if !ok {
		return
	}

	snap, err := game.Board.Place(req.IDTile, req.Slot)
	game.Touch()

	data := PlaceTileData{
		Diterima:   err == nil,
		Skor:       snap.Score,
		Terpasang:  snap.Placed,
		Selesai:    snap.Complete,
		WaktuDetik: snap.ElapsedSeconds,
	}

	switch {
	case err == nil:
		if snap.Complete {
			s.log.WithFields(map[string]any{
				"permainan": game.ID,
				"skor":      snap.Score,
			}).Info("puzzle completed")
		}
	case errors.Is(err, puzzle.ErrSlotFilled):
		data.Alasan = "SLOT_TERISI"
	case errors.Is(err, puzzle.ErrWrongSlot):
		data.Alasan = "POSISI_TIDAK_SESUAI"
	case errors.Is(err, puzzle.ErrTileNotFound):
		s.writeJSON(w, http.StatusNotFound, APIResponse{Sukses: false, Pesan: "Tile tidak ditemukan"})
		return
	default:
		s.log.Errorf("place tile failed: %v", err)
		s.writeJSON(w, http.StatusInternalServerError, APIResponse{Sukses: false, Pesan: "Gagal menempatkan tile"})
		return
	}

	s.writeJSON(w, http.StatusOK, APIResponse{Sukses: true, Data: data})
}

func (s *Server) resetGameHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req GameActionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	identity, ok := s.authenticate(w, req.SesiID)
	if !ok {
		return
	}
	game, ok := s.lookupGame(w, ps, identity.UserID)
	if !ok {
		return
	}

	game.Board.Reset()
	game.Touch()

	s.writeJSON(w, http.StatusOK, APIResponse{
		Sukses: true,
		Pesan:  "Permainan diulang",
		Data: CreateGameData{
			IDPermainan: game.ID,
			UkuranGrid:  game.Board.GridSize(),
			Tiles:       game.Board.Tiles(),
		},
	})
}

func (s *Server) gameStateHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, ok := s.authenticate(w, r.URL.Query().Get("sesiId"))
	if !ok {
		return
	}
	game, ok := s.lookupGame(w, ps, identity.UserID)
	if !ok {
		return
	}

	snap := game.Board.Snapshot()
	s.writeJSON(w, http.StatusOK, APIResponse{
		Sukses: true,
		Data: GameStateData{
			Skor:       snap.Score,
			Terpasang:  snap.Placed,
			Selesai:    snap.Complete,
			WaktuDetik: snap.ElapsedSeconds,
			Tiles:      game.Board.Tiles(),
		},
	})
}

func (s *Server) hintHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, ok := s.authenticate(w, r.URL.Query().Get("sesiId"))
	if !ok {
		return
	}
	game, ok := s.lookupGame(w, ps, identity.UserID)
	if !ok {
		return
	}

	slot, err := game.Board.Hint()
	if err != nil {
		s.writeJSON(w, http.StatusConflict, APIResponse{Sukses: false, Pesan: "Tidak ada slot kosong"})
		return
	}
	game.Touch()

	s.writeJSON(w, http.StatusOK, APIResponse{Sukses: true, Data: HintData{Slot: slot}})
}

func (s *Server) pauseGameHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req PauseRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	identity, ok := s.authenticate(w, req.SesiID)
	if !ok {
		return
	}
	game, ok := s.lookupGame(w, ps, identity.UserID)
	if !ok {
		return
	}

	pesan := "Permainan dilanjutkan"
	if req.Jeda {
		game.Board.Pause()
		pesan = "Permainan dijeda"
	} else {
		game.Board.Resume()
	}
	game.Touch()

	snap := game.Board.Snapshot()
	s.writeJSON(w, http.StatusOK, APIResponse{
		Sukses: true,
		Pesan:  pesan,
		Data: GameStateData{
			Skor:       snap.Score,
			Terpasang:  snap.Placed,
			Selesai:    snap.Complete,
			WaktuDetik: snap.ElapsedSeconds,
		},
	})
}
