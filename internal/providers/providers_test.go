package providers

import (
	"context"
	"testing"
	"time"
)

func TestMockClientChat(t *testing.T) {
	client := NewMockClient()
	client.ResponseText = "hello"

	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Model:    "test-model",
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}
	if result.Content != "hello" {
		t.Fatalf("unexpected content: %q", result.Content)
	}
	if result.ModelUsed != "test-model" {
		t.Fatalf("unexpected model: %q", result.ModelUsed)
	}
	if client.RequestCount() != 1 {
		t.Fatalf("expected 1 request, got %d", client.RequestCount())
	}
}

func TestMockClientResponseSequence(t *testing.T) {
	client := NewMockClient()
	client.Responses = []string{"first", "second"}

	ctx := context.Background()
	req := &ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}}

	for _, want := range []string{"first", "second", "second"} {
		result, err := client.Chat(ctx, req)
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if result.Content != want {
			t.Fatalf("got %q, want %q", result.Content, want)
		}
	}
}

func TestMockClientFailFirst(t *testing.T) {
	client := NewMockClient()
	client.FailFirst = 2

	ctx := context.Background()
	req := &ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}}

	for i := 0; i < 2; i++ {
		if _, err := client.Chat(ctx, req); err == nil {
			t.Fatalf("request %d should have failed", i+1)
		}
	}
	if _, err := client.Chat(ctx, req); err != nil {
		t.Fatalf("third request should succeed: %v", err)
	}
}

func TestMockClientContextCancelled(t *testing.T) {
	client := NewMockClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Chat(ctx, &ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestPacerFirstCallImmediate(t *testing.T) {
	pacer := NewPacer(time.Hour)

	start := time.Now()
	if err := pacer.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("first call waited %v", elapsed)
	}
}

func TestPacerEnforcesDelay(t *testing.T) {
	delay := 50 * time.Millisecond
	pacer := NewPacer(delay)
	ctx := context.Background()

	if err := pacer.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	start := time.Now()
	if err := pacer.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < delay-5*time.Millisecond {
		t.Fatalf("second call waited only %v, want >= %v", elapsed, delay)
	}

	status := pacer.Status()
	if status.TotalConsumed != 2 {
		t.Fatalf("expected 2 consumed, got %d", status.TotalConsumed)
	}
}

func TestPacerZeroDelayNeverBlocks(t *testing.T) {
	pacer := NewPacer(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := pacer.Wait(ctx); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("zero-delay pacer blocked for %v", elapsed)
	}
}

func TestPacerCancelledWhileWaiting(t *testing.T) {
	pacer := NewPacer(time.Hour)
	ctx := context.Background()

	if err := pacer.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := pacer.Wait(waitCtx); err == nil {
		t.Fatal("expected context deadline error")
	}
}

func TestNewOpenAICompatClientValidation(t *testing.T) {
	if _, err := NewOpenAICompatClient(OpenAICompatConfig{Model: "m"}); err == nil {
		t.Fatal("missing API key should error")
	}
	if _, err := NewOpenAICompatClient(OpenAICompatConfig{APIKey: "k"}); err == nil {
		t.Fatal("missing model should error")
	}
	client, err := NewOpenAICompatClient(OpenAICompatConfig{
		APIKey:  "k",
		BaseURL: "https://example.invalid/v1",
		Model:   "m",
	})
	if err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if client.Name() != OpenAICompatName {
		t.Fatalf("unexpected name: %q", client.Name())
	}
}
