package llmloop

import "context"

// FakeModel is a scripted LanguageModel for tests: each call to StreamText
// consumes the next entry in Responses, in order.
type FakeModel struct {
	Responses []FakeResponse
	calls     int
}

// FakeResponse scripts one StreamText call: the parts it emits, and
// whether it finishes on its own (Finishes) or only stops when its
// context is cancelled (used to simulate an in-flight call that gets
// interrupted by a newer user message).
type FakeResponse struct {
	Parts    []Part
	Finishes bool
}

func (m *FakeModel) StreamText(ctx context.Context, model string, messages []ChatMessage) (Stream, error) {
	idx := m.calls
	m.calls++

	var resp FakeResponse
	if idx < len(m.Responses) {
		resp = m.Responses[idx]
	}

	s := &fakeStream{parts: make(chan Part, len(resp.Parts)+1)}

	go func() {
		defer close(s.parts)
		for _, p := range resp.Parts {
			select {
			case s.parts <- p:
			case <-ctx.Done():
				s.err = ctx.Err()
				return
			}
		}
		if resp.Finishes {
			return
		}
		<-ctx.Done()
		s.err = ctx.Err()
	}()

	return s, nil
}

type fakeStream struct {
	parts chan Part
	err   error
}

func (s *fakeStream) Parts() <-chan Part { return s.parts }
func (s *fakeStream) Err() error         { return s.err }
