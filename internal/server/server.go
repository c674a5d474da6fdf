package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"puzzle-server/internal/database"
	"puzzle-server/internal/imagecache"
	"puzzle-server/internal/pexels"
	"puzzle-server/internal/session"
)

const (
	sweepInterval   = 5 * time.Minute
	idleGameTimeout = 2 * time.Hour

	wsMaxMessagesPerSecond = 10
)

// ImageProvider supplies puzzle source images. Random never fails: when the
// upstream is unreachable the provider returns its fallback photo.
type ImageProvider interface {
	Random(ctx context.Context) pexels.Photo
	Download(ctx context.Context, url string) ([]byte, error)
}

type Config struct {
	Port            int
	Bind            string
	DatabaseURL     string
	PexelsAPIKey    string
	PexelsTimeout   time.Duration
	CacheTTL        time.Duration
	CacheMaxEntries int
	SessionTTL      time.Duration
	PointsPerTile   int
	PublicURL       string
	Verbose         bool
}

type Server struct {
	cfg Config
	log *logrus.Logger

	db                 *sql.DB
	persistenceManager *PersistenceManager
	sessionManager     *session.Store
	imageCache         *imagecache.Cache
	imageProvider      ImageProvider
	gameManager        *GameManager
	connectionManager  *ConnectionManager
	rateLimiter        *RateLimiter

	stopSweep chan struct{}
}

// New opens the database, applies migrations, and wires every manager into a
// ready-to-serve Server plus its configured http.Server.
func New(ctx context.Context, cfg Config) (*Server, *http.Server, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database migrations applied")

	s := &Server{
		cfg:                cfg,
		log:                log,
		db:                 db,
		persistenceManager: NewPersistenceManager(db),
		sessionManager:     session.NewStore(cfg.SessionTTL),
		imageCache:         imagecache.New(cfg.CacheTTL, cfg.CacheMaxEntries),
		imageProvider:      pexels.NewClient(cfg.PexelsAPIKey, cfg.PexelsTimeout, log, nil),
		gameManager:        NewGameManager(cfg.PointsPerTile),
		connectionManager:  NewConnectionManager(),
		rateLimiter:        NewRateLimiter(wsMaxMessagesPerSecond, time.Second),
		stopSweep:          make(chan struct{}),
	}

	go s.sweepTask()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, httpServer, nil
}

// sweepTask periodically evicts expired cache entries and sessions, reaps
// abandoned games, and compacts rate limiter state.
func (s *Server) sweepTask() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			images := s.imageCache.Sweep()
			sessions := s.sessionManager.Sweep()
			games := s.gameManager.CleanupIdle(idleGameTimeout)
			s.rateLimiter.Cleanup()

			if images > 0 || sessions > 0 || games > 0 {
				s.log.WithFields(map[string]any{
					"images":   images,
					"sessions": sessions,
					"games":    games,
				}).Info("sweep completed")
			}
		}
	}
}

// Shutdown stops the background sweep and closes the database. The HTTP
// listener is shut down by the caller before this runs.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stopSweep)

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
