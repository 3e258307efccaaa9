// pubsub-setup ensures the import event topic exists before the dispatcher
// starts publishing. Run it once per environment.
//
// Usage:
//   PUBSUB_PROJECT_ID=... PUBSUB_TOPIC=... go run ./cmd/pubsub-setup
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rosterpilot/roster_backend/config"
)

func main() {
	topicName := os.Getenv("PUBSUB_TOPIC")
	if topicName == "" {
		fmt.Fprintln(os.Stderr, "PUBSUB_TOPIC is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := config.GetClient(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init pubsub client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	topic, err := config.CreateTopicIfNotExists(client, topicName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to ensure topic: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Topic ready: %s\n", topic.String())
}
