package out

import "context"

// ChatChunk is one increment of a streaming chat completion. Backends that
// stream plain deltas fill Text; backends that emit structured objects also
// fill Payload with the decoded chunk.
type ChatChunk struct {
	Text    string
	Payload map[string]any
}

// ChatStreamer is the chat-completion collaborator. Failures surface as
// errors the classifier catches and degrades from.
type ChatStreamer interface {
	StreamChat(ctx context.Context, prompt string, fn func(ChatChunk) error) error
}

// Embedder is the embedding collaborator. Callers treat an empty vector as
// "no embedding available" and continue without ranking.
type Embedder interface {
	Embed(ctx context.Context, prompt string) ([]float64, error)
}
