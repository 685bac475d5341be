// Package assistant defines the contract convoprobe uses to talk to the
// conversational assistant under test, plus HTTP and MCP implementations.
//
// The assistant is a black box. The harness only needs two calls:
//
//   - ClassifyOnce: stateless, one message in, one classified reply out.
//   - Converse: stateful, the message plus prior role-tagged history and a
//     session id, so server-side workflow state advances across turns.
//
// Implementations return an error for transport failures, non-2xx responses
// and tool errors. Turning those errors into test data is the caller's job
// (see internal/turn).
package assistant

import (
	"context"
	"fmt"
)

// Role tags a history message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ClassifyRequest is the payload of a stateless classification call.
type ClassifyRequest struct {
	Message    string `json:"message"`
	Attachment string `json:"attachment,omitempty"`
}

// ConverseRequest is the payload of a stateful conversation call.
type ConverseRequest struct {
	Message    string    `json:"message"`
	Attachment string    `json:"attachment,omitempty"`
	History    []Message `json:"history"`
	SessionID  string    `json:"sessionId"`
}

// Reply carries the fields shared by both endpoints.
type Reply struct {
	Response         string   `json:"response"`
	Intent           string   `json:"intent"`
	Source           string   `json:"source,omitempty"`
	Action           string   `json:"action"`
	Confidence       float64  `json:"confidence"`
	DetectedLanguage string   `json:"detectedLanguage"`
	MessageType      string   `json:"messageType"`
	Model            string   `json:"model,omitempty"`
	KnowledgeFiles   []string `json:"knowledgeFiles,omitempty"`
	MatchedKeyword   string   `json:"matchedKeyword,omitempty"`
}

// ClassifyReply is returned by ClassifyOnce.
type ClassifyReply struct {
	Reply
}

// ConverseReply is returned by Converse.
// WorkflowID is set when a workflow step produced the reply.
type ConverseReply struct {
	Reply
	WorkflowID string `json:"workflowId,omitempty"`
}

// Client is the assistant under test.
type Client interface {
	ClassifyOnce(ctx context.Context, req ClassifyRequest) (*ClassifyReply, error)
	Converse(ctx context.Context, req ConverseRequest) (*ConverseReply, error)
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("assistant returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("assistant returned HTTP %d: %s", e.Code, e.Body)
}
