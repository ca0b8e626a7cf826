package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/caffeinepub/ofs/internal/api"
	"github.com/caffeinepub/ofs/internal/config"
	"github.com/caffeinepub/ofs/internal/ledger"
	"github.com/caffeinepub/ofs/internal/registry"
	"github.com/caffeinepub/ofs/internal/storage"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "ofs.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Optional .env for local development; absence is fine.
	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	fileStore, err := storage.NewLocalStore(cfg.Storage.UploadsDirectory)
	if err != nil {
		fmt.Printf("Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}

	transferLedger, err := ledger.Open(cfg.Storage.LedgerPath)
	if err != nil {
		fmt.Printf("Failed to open transfer ledger: %v\n", err)
		os.Exit(1)
	}
	defer transferLedger.Close()

	reg := registry.New(fileStore, clockwork.NewRealClock(), registry.Options{
		SingleRedemption: cfg.Sessions.SingleRedemption,
		MaxSessions:      cfg.Sessions.MaxSessions,
	})

	// Background sweep of long-terminal sessions.
	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	go reg.StartCleanup(stopCleanup, cfg.CleanupInterval(), cfg.SessionMaxAge())

	handlers := api.NewHandlers(&api.Dependencies{
		Store:         fileStore,
		Registry:      reg,
		Ledger:        transferLedger,
		DefaultExpiry: cfg.DefaultExpiry(),
		Limits:        cfg.SizePolicy(),
		Origin:        cfg.Server.Origin,
		Auth: api.AuthConfig{
			JWTSecret: cfg.Auth.JWTSecret,
			Required:  cfg.Auth.RequireAuth,
		},
		Version: Version,
	})

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}

	api.RegisterRoutes(e, handlers)

	s := &http.Server{
		Addr:         cfg.Addr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	fmt.Printf("Ephemeral file handoff server %s (built %s)\n", Version, BuildTime)
	fmt.Printf("Listening on http://%s\n", cfg.Addr())
	fmt.Printf("Locator origin: %s\n", cfg.Server.Origin)
	fmt.Printf("Data directory: %s\n", cfg.Storage.DataDirectory)

	go func() {
		if err := e.StartServer(s); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
}
