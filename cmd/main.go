package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"concert-media/internal/auth"
	"concert-media/internal/comments"
	"concert-media/internal/concerts"
	"concert-media/internal/config"
	"concert-media/internal/docstore"
	"concert-media/internal/handlers"
	"concert-media/internal/ledger"
	"concert-media/internal/likes"
	"concert-media/internal/logger"
	"concert-media/internal/photos"
	"concert-media/internal/storage"
	"concert-media/internal/thumbnail"
)

func main() {
	// load config
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		panic(err)
	}
	dev := cfg.App.Env == "development"

	// logger
	log, err := logger.New(dev)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	// Mongo
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		log.Fatalf("mongo connect: %v", err)
	}
	store := docstore.NewMongoStore(mc, mc.Database(cfg.Mongo.Database), log, cfg.Mongo.Transactions)
	if err := store.EnsureIndexes(ctx); err != nil {
		log.Fatalf("mongo indexes: %v", err)
	}

	// blob store
	var blobs storage.BlobStore
	if cfg.AWS.Bucket != "" {
		blobs, err = storage.NewS3Store(context.Background(), cfg.AWS.Region, cfg.AWS.Bucket, cfg.AWS.Endpoint)
		if err != nil {
			log.Fatalf("s3 init: %v", err)
		}
	} else {
		log.Warn("no bucket configured, using in-memory blob store")
		blobs = storage.NewMemoryBlobStore()
	}

	// services
	led := ledger.New(store, blobs, log, cfg.OpTimeout)
	thumbs := thumbnail.NewGenerator(cfg.Upload.ThumbWidth, cfg.Upload.ThumbHeight)
	photoSvc := photos.NewService(store, blobs, thumbs, led, log, cfg.Upload.MaxBytes, cfg.OpTimeout)
	concertSvc := concerts.NewService(store, led, cfg.OpTimeout)
	commentSvc := comments.NewService(store, led, log, cfg.OpTimeout)
	likeGuard := likes.NewGuard(store, led, log, cfg.OpTimeout)

	// JWT verifier
	verifier, err := auth.NewJWTVerifier(cfg.JWT.PublicKeyPath)
	if err != nil {
		log.Fatalf("jwt init: %v", err)
	}

	// fiber app & routes
	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    int(cfg.Upload.MaxBytes) + 1<<20,
	})
	h := handlers.NewHandler(verifier, concertSvc, photoSvc, commentSvc, likeGuard, log)
	h.Register(app)

	// start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		log.Infof("starting concert media service on %s", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen failed: %v", err)
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Info("shutdown requested")
	timeoutCtx, cancel2 := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel2()

	_ = app.Shutdown()
	_ = mc.Disconnect(timeoutCtx)
	log.Info("shutdown completed")
}
