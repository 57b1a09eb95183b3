package llm

import (
	"context"
	"testing"
)

func TestEmbeddingRequestCarriesConfiguredModel(t *testing.T) {
	c := NewClient(ClientConfig{ChatModel: "llama3", EmbedModel: "nomic-embed-text"})

	req := c.embeddingRequest("subject and body")
	if string(req.Model) != "nomic-embed-text" {
		t.Errorf("model = %q, want the configured embed model", req.Model)
	}
	input, ok := req.Input.([]string)
	if !ok || len(input) != 1 || input[0] != "subject and body" {
		t.Errorf("input = %v", req.Input)
	}
}

func TestChatRequestUsesResolvedModel(t *testing.T) {
	override := ""
	c := NewClient(ClientConfig{
		ChatModel:     "llama3",
		ModelResolver: func(context.Context) string { return override },
		MaxTokens:     256,
		Temperature:   0.2,
	})

	req := c.chatRequest(context.Background(), "classify this")
	if req.Model != "llama3" {
		t.Errorf("empty override must fall back to the boot model, got %q", req.Model)
	}

	override = "qwen2.5"
	req = c.chatRequest(context.Background(), "classify this")
	if req.Model != "qwen2.5" {
		t.Errorf("model = %q, want the runtime override", req.Model)
	}
	if !req.Stream || req.MaxTokens != 256 {
		t.Errorf("request = %+v", req)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "classify this" {
		t.Errorf("messages = %+v", req.Messages)
	}
}

func TestChatRequestWithoutResolver(t *testing.T) {
	c := NewClient(ClientConfig{ChatModel: "llama3"})
	req := c.chatRequest(context.Background(), "x")
	if req.Model != "llama3" {
		t.Errorf("model = %q", req.Model)
	}
}
