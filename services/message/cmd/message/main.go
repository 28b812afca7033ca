package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"messagecrud/internal/access"
	"messagecrud/internal/ratelimit"
	"messagecrud/internal/usertoken"
	"messagecrud/internal/util"
	"messagecrud/pkg/domain"
	"messagecrud/pkg/store"
	"messagecrud/services/message/internal/app"
	"messagecrud/services/message/internal/config"
	"messagecrud/services/message/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel, cfg.LogBackend)
	jwtLeeway, err := config.ParseJWTLeeway(cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse jwt leeway: %v", err)
	}
	cacheTTL, err := config.ParseIdentityCacheTTL(cfg.IdentityCacheTTL)
	if err != nil {
		log.Fatalf("failed to parse identity cache ttl: %v", err)
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxy cidrs: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	if err := app.SeedUsers(ctx, dataStore, seedUsers(cfg.SeedUsers)); err != nil {
		log.Fatalf("failed to seed users: %v", err)
	}

	tokenVerifier, err := usertoken.NewVerifier(usertoken.Config{
		JWKSURL:    cfg.AuthJWKSURL,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		Leeway:     jwtLeeway,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	})
	if err != nil {
		log.Fatalf("failed to init jwks verifier: %v", err)
	}

	var userCache store.UserCache
	if cfg.RedisAddr != "" && cacheTTL > 0 {
		redisCache, err := store.NewRedisUserCache(cfg.RedisAddr, cfg.RedisPassword, cacheTTL)
		if err != nil {
			log.Fatalf("failed to init identity cache: %v", err)
		}
		userCache = redisCache
	}
	directory, err := app.NewDirectory(tokenVerifier, dataStore, userCache)
	if err != nil {
		log.Fatalf("failed to init identity directory: %v", err)
	}

	var writeLimiter *ratelimit.FixedWindowLimiter
	if cfg.WriteRateLimitPerMinute > 0 {
		writeLimiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "", cfg.WriteRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init write rate limiter: %v", err)
		}
	}

	appCore, err := app.New(app.Config{
		Store:         dataStore,
		MaxTextLength: cfg.MaxTextLength,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:            appCore,
		Identity:       directory,
		Policy:         access.DefaultPolicy(),
		APIVersions:    cfg.APIVersions,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustedProxies: trusted,
		WriteLimiter:   writeLimiter,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("message server listening", "addr", addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	waitErr := g.Wait()
	if closer, ok := dataStore.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("close store failed", "err", err)
		}
	}
	if waitErr != nil {
		logger.Error("server error", "err", waitErr)
		os.Exit(1)
	}
	logger.Info("message server stopped")
}

func openStore(cfg config.FileConfig) (store.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		return store.NewMemoryStore(), nil
	}
	return store.NewGormStore(cfg.DatabaseURL)
}

func seedUsers(entries []config.SeedUser) []domain.User {
	users := make([]domain.User, 0, len(entries))
	for _, e := range entries {
		users = append(users, domain.User{
			ID:        e.ID,
			UserName:  e.UserName,
			FirstName: e.FirstName,
			LastName:  e.LastName,
			Role:      domain.UserRole(strings.ToLower(strings.TrimSpace(e.Role))),
		})
	}
	return users
}
