package llmloop

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/iteratehq/eventbroker/internal/activerequest"
	"github.com/iteratehq/eventbroker/internal/consumer"
	"github.com/iteratehq/eventbroker/internal/eventlog"
	"github.com/iteratehq/eventbroker/internal/manager"
	"github.com/iteratehq/eventbroker/internal/processor"
	"github.com/iteratehq/eventbroker/internal/stream"
)

// State is the pure, replayable reducer state for one path's LLM loop: the
// model selected by the most recent config:set event.
type State struct {
	Model string
}

// NewProcessor builds the §4.4 Processor definition for the LLM loop: one
// hydrate/react Consumer (§4.5) per path, driving an ActiveRequest (§4.6)
// to keep at most one outbound model call in flight.
func NewProcessor(mgr *manager.StreamManager, model LanguageModel, log *zap.Logger) processor.Processor {
	return processor.Processor{
		Name: "llm-loop",
		Run: func(ctx context.Context, es *stream.EventStream) error {
			active := &activerequest.ActiveRequest{}
			c := consumer.Consumer[State]{
				Name:    "llm-loop",
				Initial: State{},
				Apply:   applyState,
				React: func(ctx context.Context, state State, ev eventlog.Event, path eventlog.StreamPath, emit consumer.EmitFunc) error {
					return react(ctx, state, ev, path, emit, model, active, log)
				},
			}
			return consumer.Run(ctx, c, mgr, es.Path(), log)
		},
	}
}

func applyState(state State, ev eventlog.Event) State {
	if configSetDescriptor.Is(ev) {
		if v, err := configSetDescriptor.Decode(ev); err == nil {
			if cs, ok := v.(ConfigSet); ok {
				state.Model = cs.Model
			}
		}
	}
	return state
}

func react(ctx context.Context, state State, ev eventlog.Event, path eventlog.StreamPath, emit consumer.EmitFunc, model LanguageModel, active *activerequest.ActiveRequest, log *zap.Logger) error {
	var content string
	switch {
	case userMessageCalledDescriptor.Is(ev):
		v, err := userMessageCalledDescriptor.Decode(ev)
		if err != nil {
			return err
		}
		content = v.(UserMessageCalled).Content
	case userAudioCalledDescriptor.Is(ev):
		// Transcription is out of scope here; the audio turn still starts
		// a request, just with no text content to hand the model.
	default:
		return nil
	}

	requestOffset := ev.Offset

	if err := emitEvent(ctx, emit, requestStartedDescriptor.Type, RequestStarted{}); err != nil {
		return fmt.Errorf("llmloop: emit request-started: %w", err)
	}

	messages := []ChatMessage{{Role: "user", Content: content}}
	previous := active.Run(ctx, requestOffset, requestBody(emit, model, state.Model, messages, requestOffset, log))

	if previous != nil {
		if err := emitEvent(ctx, emit, requestInterruptedDescriptor.Type, RequestInterrupted{RequestOffset: previous}); err != nil {
			return fmt.Errorf("llmloop: emit request-interrupted: %w", err)
		}
	}

	return nil
}

// requestBody builds the ActiveRequest effect for one user-message turn,
// per §4.6 "LLM-loop usage": stream parts as response:sse, then end or
// cancel depending on how the stream terminated.
func requestBody(emit consumer.EmitFunc, model LanguageModel, modelName string, messages []ChatMessage, requestOffset eventlog.Offset, log *zap.Logger) activerequest.Effect {
	return func(ctx context.Context) error {
		s, err := model.StreamText(ctx, modelName, messages)
		if err != nil {
			emitCancelled(emit, requestOffset, "upstream-failure", err.Error(), log)
			return err
		}

		for part := range s.Parts() {
			if err := emitEvent(context.Background(), emit, responseSSEDescriptor.Type, ResponseSSE{Part: part, RequestOffset: requestOffset}); err != nil && log != nil {
				log.Error("llmloop: emit response:sse failed", zap.Error(err))
			}
		}

		if ctx.Err() != nil {
			emitCancelled(emit, requestOffset, "interrupted", "", log)
			return ctx.Err()
		}
		if err := s.Err(); err != nil {
			emitCancelled(emit, requestOffset, "upstream-failure", err.Error(), log)
			return err
		}

		if err := emitEvent(context.Background(), emit, requestEndedDescriptor.Type, RequestEnded{RequestOffset: requestOffset}); err != nil && log != nil {
			log.Error("llmloop: emit request-ended failed", zap.Error(err))
		}
		return nil
	}
}

// emitCancelled emits request-cancelled from a cleanup path; it uses a
// background context since the effect's own context may already be
// cancelled by the time this runs.
func emitCancelled(emit consumer.EmitFunc, requestOffset eventlog.Offset, reason, message string, log *zap.Logger) {
	err := emitEvent(context.Background(), emit, requestCancelledDescriptor.Type, RequestCancelled{
		RequestOffset: requestOffset,
		Reason:        reason,
		Message:       message,
	})
	if err != nil && log != nil {
		log.Error("llmloop: emit request-cancelled failed", zap.Error(err))
	}
}

func emitEvent(ctx context.Context, emit consumer.EmitFunc, t eventlog.EventType, payload any) error {
	p, err := toPayload(payload)
	if err != nil {
		return err
	}
	return emit(ctx, eventlog.EventInput{Type: t, Payload: p})
}

func toPayload(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("llmloop: encode payload: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("llmloop: decode payload: %w", err)
	}
	return m, nil
}
