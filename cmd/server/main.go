package main

import (
	"context"
	"log"
	"time"

	"github.com/roleai-app/roleai/internal/config"
	"github.com/roleai-app/roleai/internal/db"
	"github.com/roleai-app/roleai/internal/httpapi"
	"github.com/roleai-app/roleai/internal/role"
	"github.com/roleai-app/roleai/internal/store/rabbitmq"
	"github.com/roleai-app/roleai/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ResetCodeTTL)
	defer rds.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rds.Ping(pingCtx); err != nil {
		log.Printf("redis unavailable, password reset disabled addr=%s err=%v", cfg.RedisAddr, err)
	}
	cancel()

	// The broker is optional. Without it roles are still fully usable,
	// they just never get embeddings for similarity search.
	var indexer role.IndexPublisher
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Printf("rabbit unavailable, role indexing disabled url=%s err=%v", cfg.RabbitURL, err)
	} else {
		indexer = pub
		defer pub.Close()
	}

	r := httpapi.NewRouter(gdb, cfg, rds, indexer)

	log.Printf("server listening addr=%s provider=%s", cfg.HTTPAddr, cfg.AIProvider)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
