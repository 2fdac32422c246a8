package internal

import (
	"context"
	"testing"
	"time"
)

func TestNewStreamGoChannelPublishes(t *testing.T) {
	stream, err := NewStream(StreamConfig{
		Driver: "gochannel",
		Topic:  "gitaiops.outcomes",
	})
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	defer stream.Close()

	note := Notification{
		EventID:    "pipeline_deadbeef",
		Kind:       KindPipeline,
		Status:     StatusSucceeded,
		Priority:   PriorityHigh,
		ProjectID:  42,
		SubjectID:  7,
		Attempts:   1,
		FinishedAt: time.Now().UTC(),
	}
	if err := stream.Publish(context.Background(), note); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestNewStreamSkipsBrokenDrivers(t *testing.T) {
	// Kafka without brokers cannot initialize; gochannel still carries
	// the stream.
	stream, err := NewStream(StreamConfig{
		Drivers: []string{"kafka", "gochannel"},
		Topic:   "gitaiops.outcomes",
	})
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	defer stream.Close()

	if err := stream.Publish(context.Background(), Notification{EventID: "push_0a0a0a0a", Kind: KindPush, Status: StatusAbandoned}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestNewStreamFailsWithNoUsableDriver(t *testing.T) {
	if _, err := NewStream(StreamConfig{Driver: "carrier-pigeon"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
