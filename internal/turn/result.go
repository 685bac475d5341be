// Package turn executes a single conversational turn against the assistant
// and normalizes the reply into a Result.
package turn

// Source identifies which assistant stage produced a reply.
type Source string

const (
	SourceKeyword  Source = "keyword"
	SourceFuzzy    Source = "fuzzy"
	SourceSemantic Source = "semantic"
	SourceLLM      Source = "llm"
	SourceWorkflow Source = "workflow"
	SourceError    Source = "error"
	SourceUnknown  Source = "unknown"
)

// ParseSource maps a reply's source string onto the known set.
// Anything unrecognized becomes SourceUnknown.
func ParseSource(s string) Source {
	switch Source(s) {
	case SourceKeyword, SourceFuzzy, SourceSemantic, SourceLLM, SourceWorkflow, SourceError:
		return Source(s)
	default:
		return SourceUnknown
	}
}

// Mode selects the assistant endpoint used for a turn.
type Mode string

const (
	// ModeSingle sends each message to the stateless classifier.
	ModeSingle Mode = "single"
	// ModeMulti threads history and a session id through the conversation endpoint.
	ModeMulti Mode = "multi"
)

// Result is the normalized outcome of one turn.
type Result struct {
	TurnIndex          int      `json:"turnIndex"`
	UserMessage        string   `json:"userMessage"`
	ResponseText       string   `json:"responseText"`
	Intent             string   `json:"intent"`
	DetectionSource    Source   `json:"detectionSource"`
	RoutedAction       string   `json:"routedAction"`
	Confidence         float64  `json:"confidence"`
	DetectedLanguage   string   `json:"detectedLanguage"`
	MessageType        string   `json:"messageType"`
	Model              string   `json:"model,omitempty"`
	KnowledgeFilesUsed []string `json:"knowledgeFilesUsed"`
	ResponseLatencyMs  int64    `json:"responseLatencyMs"`
	MatchedKeyword     string   `json:"matchedKeyword,omitempty"`
	WorkflowID         string   `json:"workflowId,omitempty"`
}

// Failed reports whether the turn is a synthetic error turn.
func (r Result) Failed() bool {
	return r.DetectionSource == SourceError
}
