package llmloop

import "context"

// EchoModel is the default LanguageModel wired into the eventbrokerd
// binary: real provider backends are explicitly out of scope (spec.md
// §1 "Deliberately out of scope"), so the binary ships a deterministic
// stand-in that streams the last user message back as a single
// text-delta and finishes immediately. It exists so the llm-loop
// processor has something to drive end-to-end without a network
// dependency; swap it for a real HTTP-backed LanguageModel in
// deployment.
type EchoModel struct{}

func (EchoModel) StreamText(ctx context.Context, model string, messages []ChatMessage) (Stream, error) {
	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			last = messages[i].Content
			break
		}
	}

	parts := make(chan Part, 1)
	parts <- Part{Type: "text-delta", Text: last}
	close(parts)

	return &echoStream{parts: parts}, nil
}

type echoStream struct {
	parts chan Part
}

func (s *echoStream) Parts() <-chan Part { return s.parts }
func (s *echoStream) Err() error         { return nil }
