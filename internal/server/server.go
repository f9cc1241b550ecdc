package server

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/muurk/espfw/internal/discovery"
	"github.com/muurk/espfw/internal/logging"
	"github.com/muurk/espfw/internal/version"
)

// Defaults for a fresh server configuration.
const (
	DefaultPort     = 5000
	DefaultBasePath = "/api"
	DefaultTokenTTL = 24 * time.Hour
	DefaultInstance = "espfw"

	shutdownTimeout = 10 * time.Second
)

// Config holds the server configuration
type Config struct {
	Host     string
	Port     int
	BasePath string // Prefix of every API route, e.g. "/api"

	DataDir      string // Holds the database and the firmware binaries
	DatabasePath string // Defaults to DataDir/espfw.db; ":memory:" is allowed
	SeedPath     string // Optional YAML seed applied at startup

	JWTSecret string // Random per process when empty
	TokenTTL  time.Duration

	CertPath string // Serve HTTPS when both CertPath and KeyPath are set
	KeyPath  string

	Advertise bool   // Register an mDNS service for discovery
	Instance  string // mDNS instance name

	LogLevel string
}

// DefaultConfig returns a configuration listening on :5000 with data in
// ./espfw-data.
func DefaultConfig() *Config {
	return &Config{
		Port:     DefaultPort,
		BasePath: DefaultBasePath,
		DataDir:  "espfw-data",
		TokenTTL: DefaultTokenTTL,
		Instance: DefaultInstance,
		LogLevel: "info",
	}
}

// Server is the development firmware backend.
type Server struct {
	config     *Config
	store      *Store
	tokens     *TokenIssuer
	hub        *Hub
	engine     *gin.Engine
	tlsConfig  *tls.Config
	httpServer *http.Server
	advert     *discovery.Advertisement
	now        func() time.Time
}

// New opens the store, applies the seed file and builds the router.
func New(config *Config) (*Server, error) {
	if config.LogLevel != "" {
		if err := logging.Initialize(config.LogLevel); err != nil {
			return nil, fmt.Errorf("failed to initialize logging: %w", err)
		}
	}
	if config.BasePath == "" {
		config.BasePath = DefaultBasePath
	}
	config.BasePath = "/" + strings.Trim(config.BasePath, "/")
	if config.TokenTTL <= 0 {
		config.TokenTTL = DefaultTokenTTL
	}

	dbPath := config.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(config.DataDir, "espfw.db")
	}
	store, err := OpenStore(dbPath, filepath.Join(config.DataDir, "firmware"))
	if err != nil {
		return nil, err
	}

	if config.SeedPath != "" {
		seed, err := LoadSeed(config.SeedPath)
		if err == nil {
			err = store.ApplySeed(context.Background(), seed)
		}
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		logging.Info("Seed applied",
			zap.String("path", config.SeedPath),
			zap.Int("users", len(seed.Users)),
			zap.Int("projects", len(seed.Projects)),
			zap.Int("devices", len(seed.Devices)),
		)
	}

	secret := []byte(config.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
		logging.Warn("No JWT secret configured; sessions end when the server restarts")
	}

	var tlsConfig *tls.Config
	if config.CertPath != "" || config.KeyPath != "" {
		tlsConfig, err = NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		config:    config,
		store:     store,
		tokens:    NewTokenIssuer(secret, config.TokenTTL),
		hub:       NewHub(),
		tlsConfig: tlsConfig,
		now:       time.Now,
	}
	s.engine = s.routes()
	return s, nil
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Store returns the backing store.
func (s *Server) Store() *Store {
	return s.store
}

// Hub returns the change-feed hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start serves until SIGINT/SIGTERM or a listener failure.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}

	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheme := "http"
	if s.tlsConfig != nil {
		scheme = "https"
	}
	logging.Info("Starting firmware backend",
		zap.String("addr", listener.Addr().String()),
		zap.String("base_path", s.config.BasePath),
		zap.String("version", version.Version),
		zap.Any("tls_info", GetTLSInfo(s.tlsConfig)),
	)

	if s.config.Advertise {
		port := listener.Addr().(*net.TCPAddr).Port
		s.advert, err = discovery.Advertise(s.config.Instance, port, map[string]string{
			discovery.TXTPath:    s.config.BasePath,
			discovery.TXTScheme:  scheme,
			discovery.TXTVersion: version.Version,
		})
		if err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			logging.Info("Advertising via mDNS",
				zap.String("instance", s.config.Instance),
				zap.String("service", discovery.ServiceType),
			)
		}
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown signal received, stopping server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown withdraws the advertisement, closes change-feed subscribers,
// drains in-flight requests and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.advert.Shutdown()
	s.hub.Close()

	var err error
	if s.httpServer != nil {
		if err = s.httpServer.Shutdown(ctx); err != nil {
			logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
			_ = s.httpServer.Close()
		}
	}
	if cerr := s.store.Close(); cerr != nil && err == nil {
		err = cerr
	}

	logging.Sync()
	return err
}
