package testutil

import (
	"context"
	"sync"

	"github.com/roach88/convoprobe/internal/assistant"
)

// FallbackResponse is what ScriptedAssistant says to messages it has no
// script entry for.
const FallbackResponse = "I don't understand."

// ScriptedAssistant is an in-memory assistant.Client for tests.
//
// Replies are looked up by message text in Replies. ClassifyFunc and
// ConverseFunc, when set, take precedence over the script. Every request is
// recorded so tests can inspect what the harness sent.
//
// Thread-safety: safe for concurrent use; the harness calls it from many
// workers at once.
type ScriptedAssistant struct {
	Replies map[string]assistant.Reply

	ClassifyFunc func(ctx context.Context, req assistant.ClassifyRequest) (*assistant.ClassifyReply, error)
	ConverseFunc func(ctx context.Context, req assistant.ConverseRequest) (*assistant.ConverseReply, error)

	mu            sync.Mutex
	classifyCalls []assistant.ClassifyRequest
	converseCalls []assistant.ConverseRequest
}

// NewScriptedAssistant creates a fake answering from the given script.
func NewScriptedAssistant(replies map[string]assistant.Reply) *ScriptedAssistant {
	if replies == nil {
		replies = map[string]assistant.Reply{}
	}
	return &ScriptedAssistant{Replies: replies}
}

// ClassifyOnce implements assistant.Client.
func (a *ScriptedAssistant) ClassifyOnce(ctx context.Context, req assistant.ClassifyRequest) (*assistant.ClassifyReply, error) {
	a.mu.Lock()
	a.classifyCalls = append(a.classifyCalls, req)
	a.mu.Unlock()

	if a.ClassifyFunc != nil {
		return a.ClassifyFunc(ctx, req)
	}
	return &assistant.ClassifyReply{Reply: a.lookup(req.Message)}, nil
}

// Converse implements assistant.Client.
func (a *ScriptedAssistant) Converse(ctx context.Context, req assistant.ConverseRequest) (*assistant.ConverseReply, error) {
	req.History = append([]assistant.Message(nil), req.History...)

	a.mu.Lock()
	a.converseCalls = append(a.converseCalls, req)
	a.mu.Unlock()

	if a.ConverseFunc != nil {
		return a.ConverseFunc(ctx, req)
	}
	return &assistant.ConverseReply{Reply: a.lookup(req.Message)}, nil
}

// ClassifyCalls returns a copy of the recorded classification requests.
func (a *ScriptedAssistant) ClassifyCalls() []assistant.ClassifyRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]assistant.ClassifyRequest(nil), a.classifyCalls...)
}

// ConverseCalls returns a copy of the recorded conversation requests.
func (a *ScriptedAssistant) ConverseCalls() []assistant.ConverseRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]assistant.ConverseRequest(nil), a.converseCalls...)
}

func (a *ScriptedAssistant) lookup(message string) assistant.Reply {
	if r, ok := a.Replies[message]; ok {
		return r
	}
	return assistant.Reply{
		Response:         FallbackResponse,
		Intent:           "unknown",
		Source:           "llm",
		DetectedLanguage: "en",
		MessageType:      "text",
	}
}
