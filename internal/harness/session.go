package harness

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/convoprobe/internal/assistant"
	"github.com/roach88/convoprobe/internal/catalog"
	"github.com/roach88/convoprobe/internal/turn"
)

// ModeSelector decides whether a scenario runs as independent messages or
// as one conversation.
type ModeSelector interface {
	Mode(s catalog.Scenario) turn.Mode
}

// ModeSelectorFunc adapts a function to ModeSelector.
type ModeSelectorFunc func(s catalog.Scenario) turn.Mode

// Mode implements ModeSelector.
func (f ModeSelectorFunc) Mode(s catalog.Scenario) turn.Mode { return f(s) }

// CategorySelector picks multi mode for scenarios with more than one message
// whose category is listed in Categories or whose suite equals Suite.
type CategorySelector struct {
	Categories []string
	Suite      string
}

// DefaultSelector returns the built-in conversation categories and suite.
func DefaultSelector() CategorySelector {
	return CategorySelector{
		Categories: []string{"workflow", "multi_turn", "conversation"},
		Suite:      "multi-turn",
	}
}

// Mode implements ModeSelector.
func (c CategorySelector) Mode(s catalog.Scenario) turn.Mode {
	if len(s.Messages) <= 1 {
		return turn.ModeSingle
	}
	if slices.Contains(c.Categories, s.Category) {
		return turn.ModeMulti
	}
	if c.Suite != "" && s.Suite == c.Suite {
		return turn.ModeMulti
	}
	return turn.ModeSingle
}

// SessionID names the conversation a multi-turn scenario holds with the
// assistant during one run.
func SessionID(scenarioID string, runStart time.Time) string {
	return fmt.Sprintf("%s-%d", scenarioID, runStart.UnixMilli())
}

// session drives the turns of one scenario. In multi mode it owns the
// conversation history; nothing outside the session sees it.
type session struct {
	exec    *turn.Executor
	mode    turn.Mode
	id      string
	history []assistant.Message
}

func newSession(exec *turn.Executor, mode turn.Mode, id string) *session {
	return &session{exec: exec, mode: mode, id: id}
}

func (s *session) send(ctx context.Context, index int, msg catalog.Message) turn.Result {
	req := turn.Request{
		Mode:       s.mode,
		Index:      index,
		Text:       msg.Text,
		Attachment: msg.Attachment,
	}
	if s.mode == turn.ModeMulti {
		req.SessionID = s.id
		return s.exec.Send(ctx, req, &s.history)
	}
	return s.exec.Send(ctx, req, nil)
}
