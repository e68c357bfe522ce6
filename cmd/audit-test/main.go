// Package main is a manual smoke harness for the outbox relay. It appends a
// sample of real badge-pipeline events to a memory outbox, runs the relay
// worker against Kafka when KAFKA_BROKERS is set (the no-op producer
// otherwise) and reports what drained. Run it against a broker before a
// deploy to check connectivity and topic ACLs.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"emblem/internal/audit"
	mintmodels "emblem/internal/minting/models"
	"emblem/internal/platform/kafka/producer"
	vermodels "emblem/internal/verification/models"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store := audit.NewInMemoryStore()
	publisher := audit.NewPublisher(store, logger)

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "emblem.badge.events"
	}

	var prod audit.MessageProducer = producer.NewNoopProducer(logger)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		kafkaProducer, err := producer.New(producer.Config{Brokers: brokers}, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kafka init failed: %v\n", err)
			os.Exit(1)
		}
		defer kafkaProducer.Close()
		prod = kafkaProducer
		fmt.Printf("Publishing to %s (topic %q)\n", brokers, topic)
	} else {
		fmt.Println("KAFKA_BROKERS not set, using the no-op producer")
	}

	ctx := context.Background()
	wallet := "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984"
	sessionID := uuid.NewString()

	events := []audit.Event{
		{
			AggregateType: audit.AggregateVerificationSession,
			AggregateID:   sessionID,
			EventType:     vermodels.EventSessionCreated,
			Payload:       map[string]any{"wallet": wallet, "provider": "stub"},
		},
		{
			AggregateType: audit.AggregateVerificationSession,
			AggregateID:   sessionID,
			EventType:     vermodels.EventSessionCompleted,
			Payload:       map[string]any{"wallet": wallet, "did": "did:stub:smoke"},
		},
		{
			AggregateType: audit.AggregateMintRecord,
			AggregateID:   uuid.NewString(),
			EventType:     mintmodels.EventMintCompleted,
			Payload:       map[string]any{"wallet": wallet, "token_id": "42"},
		},
		{
			AggregateType: audit.AggregateBusClient,
			AggregateID:   uuid.NewString(),
			EventType:     "bus.client_attached",
			Payload:       map[string]any{"client": "Smoke Harness", "remote_ip": "127.0.0.0"},
		},
	}

	fmt.Println("\n=== Outbox Relay Test ===")

	fmt.Printf("1. Appending %d events...\n", len(events))
	for i, event := range events {
		if err := publisher.Emit(ctx, event); err != nil {
			fmt.Fprintf(os.Stderr, "   Event %d (%s) failed: %v\n", i+1, event.EventType, err)
			os.Exit(1)
		}
		fmt.Printf("   Event %d appended: %s\n", i+1, event.EventType)
	}

	fmt.Println("\n2. Running the relay worker...")
	worker := audit.NewWorker(store, prod, logger,
		audit.WithTopic(topic),
		audit.WithPollInterval(100*time.Millisecond),
	)
	worker.Start()

	deadline := time.Now().Add(5 * time.Second)
	for {
		pending, err := store.CountPending(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "count pending: %v\n", err)
			os.Exit(1)
		}
		if pending == 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := worker.Stop(stopCtx); err != nil {
		logger.Warn("worker stop", "error", err)
	}

	fmt.Println("\n3. Checking outbox state...")
	pending, err := store.CountPending(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "count pending: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("   Pending records: %d\n", pending)
	if pending > 0 {
		fmt.Println("   Records did not drain; check broker errors above.")
		os.Exit(1)
	}
	fmt.Println("   All records published and marked processed.")
}
