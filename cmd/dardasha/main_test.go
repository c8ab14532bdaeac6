package main

import (
	"testing"

	"dardasha/internal/config"
	"dardasha/pkg/notify"
)

func TestBuildNotifierMemory(t *testing.T) {
	// An explicit memory selection wins even when Redis is configured.
	n, err := buildNotifier(config.FileConfig{NotifierDriver: "memory", RedisAddr: "localhost:6379"})
	if err != nil {
		t.Fatalf("build notifier: %v", err)
	}
	if _, ok := n.(*notify.MemoryNotifier); !ok {
		t.Fatalf("expected in-process notifier, got %T", n)
	}
}

func TestBuildNotifierDefault(t *testing.T) {
	// No driver and no Redis address falls back to in-process delivery.
	n, err := buildNotifier(config.FileConfig{})
	if err != nil {
		t.Fatalf("build notifier: %v", err)
	}
	if _, ok := n.(*notify.MemoryNotifier); !ok {
		t.Fatalf("expected in-process notifier, got %T", n)
	}
}
