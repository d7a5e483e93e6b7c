package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/nikpetrovv/blog_service/internal/cache"
	"github.com/nikpetrovv/blog_service/internal/config"
	"github.com/nikpetrovv/blog_service/internal/es"
	"github.com/nikpetrovv/blog_service/internal/handlers"
	"github.com/nikpetrovv/blog_service/internal/logging"
	"github.com/nikpetrovv/blog_service/internal/mykafka"
	"github.com/nikpetrovv/blog_service/internal/refreshreg"
	"github.com/nikpetrovv/blog_service/internal/repo"
	"github.com/nikpetrovv/blog_service/internal/revocation"
	"github.com/nikpetrovv/blog_service/internal/search"
	"github.com/nikpetrovv/blog_service/internal/service"
	"github.com/nikpetrovv/blog_service/internal/tokens"
	httpserver "github.com/nikpetrovv/blog_service/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	slog.SetDefault(logger)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("Ошибка инициализации БД: %v", err)
	}

	caches, err := cache.New(context.Background(), configuration.REDIS_ADDR)
	if err != nil {
		log.Fatalf("Ошибка инициализации redis: %v", err)
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	brokers := strings.Split(configuration.KAFKA_ADDRESS, ",")
	prod, err := mykafka.NewProducer(brokers)
	if err != nil {
		log.Fatal(err)
	}

	codec := tokens.NewCodec([]byte(configuration.JWT_SECRET))
	users := repo.NewUserRepo(db)
	ledger := revocation.NewLedger(caches.BlockedTokens, db)
	registry := refreshreg.NewRegistry(caches.RefreshTokens)
	indexer := search.NewIndexer(esClient, "posts")

	sessions := &service.SessionService{
		Users:    users,
		Codec:    codec,
		Ledger:   ledger,
		Registry: registry,
		Producer: prod,
	}
	posts := &service.PostService{
		DB:       db,
		Cache:    caches.Generic,
		Indexer:  indexer,
		Producer: prod,
	}

	e := echo.New()
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover(), echomw.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logging.IntoContext(c.Request().Context(), logger)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})

	deps := httpserver.Deps{
		Sessions:    sessions,
		AuthHandler: &handlers.AuthHandler{Sessions: sessions},
		PostHandler: &handlers.PostHandler{Posts: posts, Indexer: indexer},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := caches.Close(); err != nil {
		log.Printf("redis close error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
