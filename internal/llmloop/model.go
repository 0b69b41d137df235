package llmloop

import "context"

// Part is one streamed fragment of a model response. Shape is
// deliberately loose (mirrors the wire payload's arbitrary-JSON "part"
// field) since different models stream different part shapes
// (text-delta, tool-call, etc.).
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ChatMessage is one turn of conversation history passed to the model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LanguageModel is the external collaborator the LLM loop drives. It is
// the only seam to an actual model provider; production wiring plugs in a
// real HTTP-backed implementation, tests use the in-package FakeModel.
type LanguageModel interface {
	// StreamText starts a streaming completion for model given the
	// conversation so far. The returned Stream's Parts channel is closed
	// when the stream ends (normally or via ctx cancellation); the terminal
	// error, if any, is then available from the Stream's Err method.
	StreamText(ctx context.Context, model string, messages []ChatMessage) (Stream, error)
}

// Stream is a single in-flight completion.
type Stream interface {
	// Parts yields streamed fragments in order. It is closed when the
	// stream ends or ctx is cancelled.
	Parts() <-chan Part
	// Err returns the terminal error, if any, once Parts is closed. Err
	// must not be called before Parts is closed.
	Err() error
}
