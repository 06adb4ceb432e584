package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/rs/cors"

	"kanbanlite-backend/internal/auth"
	"kanbanlite-backend/internal/blob"
	"kanbanlite-backend/internal/board"
	"kanbanlite-backend/internal/config"
	"kanbanlite-backend/internal/db"
	"kanbanlite-backend/internal/docstore"
	"kanbanlite-backend/internal/httpapi"
	"kanbanlite-backend/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info").Fatal("failed to load config: ", err)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Document store: MongoDB when configured, in-process otherwise.
	var (
		store docstore.Store
		users docstore.UserStore
	)
	if cfg.MongoURI == "" {
		mem := docstore.NewMemory()
		store, users = mem, mem
		log.Warn("MONGO_URI not set, using in-process store (data is not persisted)")
	} else {
		m, err := docstore.Connect(ctx, cfg.MongoURI, cfg.MongoDB, log)
		if err != nil {
			log.Fatal("failed to connect to MongoDB: ", err)
		}
		defer m.Close(context.Background())
		store, users = m, m
		log.Info("connected to MongoDB")
	}

	blobs, err := blob.New(&blob.Config{
		Provider:   cfg.StorageProvider,
		ID:         cfg.StorageID,
		Secret:     cfg.StorageSecret,
		Region:     cfg.StorageRegion,
		Bucket:     cfg.StorageBucket,
		Endpoint:   cfg.StorageEndpoint,
		PublicBase: cfg.StoragePublicBase,
	})
	if err != nil {
		log.Fatal("failed to init blob storage: ", err)
	}

	var analyticsDB *sql.DB
	if cfg.AnalyticsDSN != "" {
		analyticsDB, err = db.Connect(cfg.AnalyticsDSN)
		if err != nil {
			log.WithError(err).Warn("analytics database unavailable, events disabled")
			analyticsDB = nil
		} else {
			defer analyticsDB.Close()
			log.Info("connected to analytics database")
		}
	}

	state := board.NewState()
	svc := board.NewService(store, blobs, state, log)

	go func() {
		if err := board.RunSync(ctx, store, state, log); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("snapshot sync stopped")
		}
	}()

	secret := []byte(cfg.JWTSecret)
	authMW := auth.NewMiddleware(secret)
	authH := auth.NewHandler(users, secret, log)

	mux := httpapi.New(svc, state, authMW, authH, blobs, analyticsDB, log).Routes()

	// Attachments served straight from disk with the filesystem provider;
	// cloud providers hand out their own URLs.
	if cfg.StorageProvider == "" || cfg.StorageProvider == "filesystem" {
		mux.Handle("GET /files/", http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.StorageBucket))))
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key", "X-Platform", "X-App-Version", "X-Session-Id"},
		AllowCredentials: true,
	})
	handler := c.Handler(mux)

	log.Info("API server is running on ", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, handler))
}
