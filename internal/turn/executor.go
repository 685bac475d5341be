package turn

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/convoprobe/internal/assistant"
)

// Default per-call timeouts. Conversation calls may walk a workflow and get
// more room than stateless classification.
const (
	DefaultSingleTimeout = 15 * time.Second
	DefaultMultiTimeout  = 30 * time.Second
)

// Request describes one turn to send.
type Request struct {
	Mode       Mode
	Index      int
	Text       string
	Attachment string
	// SessionID is only sent in ModeMulti.
	SessionID string
}

// Executor sends turns to an assistant.Client.
//
// Send never returns an error: transport failures, non-2xx replies and
// timeouts become a Result with DetectionSource == SourceError.
type Executor struct {
	client        assistant.Client
	singleTimeout time.Duration
	multiTimeout  time.Duration
	now           func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeouts sets the per-call timeouts. Non-positive values keep the defaults.
func WithTimeouts(single, multi time.Duration) Option {
	return func(e *Executor) {
		if single > 0 {
			e.singleTimeout = single
		}
		if multi > 0 {
			e.multiTimeout = multi
		}
	}
}

// WithClock replaces time.Now for latency measurement.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// NewExecutor creates an executor for the given client.
func NewExecutor(client assistant.Client, opts ...Option) *Executor {
	e := &Executor{
		client:        client,
		singleTimeout: DefaultSingleTimeout,
		multiTimeout:  DefaultMultiTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Send executes one turn.
//
// In ModeMulti the turn is appended to *history once it completes: the user
// message always, the assistant reply only when the turn succeeded. history
// is owned by the caller; Send keeps no reference to it.
func (e *Executor) Send(ctx context.Context, req Request, history *[]assistant.Message) Result {
	start := e.now()

	var (
		res Result
		err error
	)
	switch req.Mode {
	case ModeMulti:
		res, err = e.converse(ctx, req, history)
	default:
		res, err = e.classify(ctx, req)
	}
	latency := e.now().Sub(start).Milliseconds()

	if err != nil {
		res = errorResult(err)
	}
	res.TurnIndex = req.Index
	res.UserMessage = req.Text
	res.ResponseLatencyMs = latency

	if req.Mode == ModeMulti && history != nil {
		*history = append(*history, assistant.Message{Role: assistant.RoleUser, Content: req.Text})
		if err == nil {
			*history = append(*history, assistant.Message{Role: assistant.RoleAssistant, Content: res.ResponseText})
		}
	}

	return res
}

func (e *Executor) classify(ctx context.Context, req Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.singleTimeout)
	defer cancel()

	reply, err := e.client.ClassifyOnce(ctx, assistant.ClassifyRequest{
		Message:    req.Text,
		Attachment: req.Attachment,
	})
	if err != nil {
		return Result{}, err
	}
	if reply == nil {
		return Result{}, fmt.Errorf("classify: empty reply")
	}

	return fromReply(reply.Reply, ParseSource(reply.Source)), nil
}

func (e *Executor) converse(ctx context.Context, req Request, history *[]assistant.Message) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.multiTimeout)
	defer cancel()

	var prior []assistant.Message
	if history != nil {
		// Copy so the client cannot observe later appends.
		prior = append([]assistant.Message(nil), (*history)...)
	}

	reply, err := e.client.Converse(ctx, assistant.ConverseRequest{
		Message:    req.Text,
		Attachment: req.Attachment,
		History:    prior,
		SessionID:  req.SessionID,
	})
	if err != nil {
		return Result{}, err
	}
	if reply == nil {
		return Result{}, fmt.Errorf("converse: empty reply")
	}

	source := ParseSource(reply.Source)
	if reply.Source == "" && reply.WorkflowID != "" {
		source = SourceWorkflow
	}
	res := fromReply(reply.Reply, source)
	res.WorkflowID = reply.WorkflowID
	return res, nil
}

func fromReply(r assistant.Reply, source Source) Result {
	files := r.KnowledgeFiles
	if files == nil {
		files = []string{}
	}
	return Result{
		ResponseText:       r.Response,
		Intent:             r.Intent,
		DetectionSource:    source,
		RoutedAction:       r.Action,
		Confidence:         r.Confidence,
		DetectedLanguage:   r.DetectedLanguage,
		MessageType:        r.MessageType,
		Model:              r.Model,
		KnowledgeFilesUsed: files,
		MatchedKeyword:     r.MatchedKeyword,
	}
}

func errorResult(err error) Result {
	return Result{
		ResponseText:       "Error: " + err.Error(),
		DetectionSource:    SourceError,
		KnowledgeFilesUsed: []string{},
	}
}
