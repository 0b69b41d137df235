// Package llmloop implements the LLM-loop processor described in §4.6 and
// the reserved "iterate:*" event types in §6: a Consumer that drives
// at-most-one outbound language-model call per path via
// internal/activerequest.
package llmloop

import "github.com/iteratehq/eventbroker/internal/eventlog"

// Reserved event types, fixed by the schema registry (§6 "Known event
// types").
const (
	TypeConfigSet          eventlog.EventType = "iterate:agent:config:set"
	TypeUserMessageCalled  eventlog.EventType = "iterate:agent:action:send-user-message:called"
	TypeUserAudioCalled    eventlog.EventType = "iterate:agent:action:send-user-audio:called"
	TypeRequestStarted     eventlog.EventType = "iterate:llm-loop:request-started"
	TypeResponseSSE        eventlog.EventType = "iterate:llm-loop:response:sse"
	TypeRequestEnded       eventlog.EventType = "iterate:llm-loop:request-ended"
	TypeRequestCancelled   eventlog.EventType = "iterate:llm-loop:request-cancelled"
	TypeRequestInterrupted eventlog.EventType = "iterate:llm-loop:request-interrupted"
)

// ConfigSet selects which upstream model a path's LLM loop talks to.
type ConfigSet struct {
	Model string `json:"model"`
}

// UserMessageCalled carries a user's text turn.
type UserMessageCalled struct {
	Content string `json:"content"`
}

// UserAudioCalled carries a user's audio turn as base64.
type UserAudioCalled struct {
	Audio string `json:"audio"`
}

// RequestStarted marks the beginning of an outbound call triggered by a
// user-message event. Its payload is empty; it does not carry the
// triggering event's offset.
type RequestStarted struct{}

// ResponseSSE carries one streamed part of the model's response.
type ResponseSSE struct {
	Part          Part            `json:"part"`
	RequestOffset eventlog.Offset `json:"requestOffset"`
}

// RequestEnded marks a clean end of the stream for RequestOffset.
type RequestEnded struct {
	RequestOffset eventlog.Offset `json:"requestOffset"`
}

// RequestCancelled marks an interrupted request's cleanup.
type RequestCancelled struct {
	RequestOffset eventlog.Offset `json:"requestOffset"`
	Reason        string          `json:"reason"`
	Message       string          `json:"message,omitempty"`
}

// RequestInterrupted announces that the request at RequestOffset was
// preempted by a newer one. RequestOffset is nil when there was nothing to
// preempt.
type RequestInterrupted struct {
	RequestOffset *eventlog.Offset `json:"requestOffset"`
}

var (
	configSetDescriptor          = eventlog.Register[ConfigSet](TypeConfigSet)
	userMessageCalledDescriptor  = eventlog.Register[UserMessageCalled](TypeUserMessageCalled)
	userAudioCalledDescriptor    = eventlog.Register[UserAudioCalled](TypeUserAudioCalled)
	requestStartedDescriptor     = eventlog.Register[RequestStarted](TypeRequestStarted)
	responseSSEDescriptor        = eventlog.Register[ResponseSSE](TypeResponseSSE)
	requestEndedDescriptor       = eventlog.Register[RequestEnded](TypeRequestEnded)
	requestCancelledDescriptor   = eventlog.Register[RequestCancelled](TypeRequestCancelled)
	requestInterruptedDescriptor = eventlog.Register[RequestInterrupted](TypeRequestInterrupted)
)
