package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rollcall/internal/attendance"
	"rollcall/internal/config"
	"rollcall/internal/queue"
	"rollcall/internal/store"
)

// Worker drains accepted check-ins from the queue and writes them through
// the idempotent attendance sink, so a replayed message is harmless.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema check failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "rollcall:attendance")
	}

	repo := attendance.NewRepository(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != "attendance" {
			continue
		}

		var checkin attendance.CheckInMessage
		if err := json.Unmarshal(msg.Body, &checkin); err != nil {
			log.Printf("malformed check-in message: %v", err)
			continue
		}

		if err := repo.RecordAttendance(ctx, checkin.UserID, checkin.MeetingID); err != nil {
			log.Printf("record attendance for user %s meeting %s failed: %v",
				checkin.UserID, checkin.MeetingID, err)
			continue
		}
		log.Printf("recorded attendance: user %s meeting %s", checkin.UserID, checkin.MeetingID)
	}

	log.Println("worker stopped")
}
