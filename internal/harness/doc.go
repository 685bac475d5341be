// Package harness runs conversational test scenarios against an assistant
// and summarizes the outcome.
//
// # Execution Model
//
// A run takes a list of catalog scenarios and a concurrency limit. Workers
// claim scenarios from a shared cursor, so at most `concurrency` scenarios
// are talking to the assistant at once. Each scenario runs its turns in
// order, in one of two modes:
//
//   - single: every message is classified on its own, with no history
//   - multi: messages are one conversation; history and a session id are
//     threaded through every turn
//
// The mode is chosen per scenario by a ModeSelector. CategorySelector, the
// default, picks multi for scenarios with more than one message whose
// category or suite marks them as conversations.
//
// After the last turn, every validation group is evaluated against the turn
// it names and the scenario gets a status:
//
//   - fail: at least one critical rule failed
//   - warn: only non-critical rules failed
//   - pass: nothing failed (including scenarios with no validations)
//
// # Failure Containment
//
// Nothing that goes wrong inside a scenario escapes it. Transport errors
// become error turns, and panics or malformed scenarios become a fail with
// a synthetic critical "execution" rule result. A run only returns an error
// for misuse of the harness itself, such as starting a second run while one
// is active (ErrRunActive).
//
// # Cancellation
//
// RequestCancel, or cancelling the context passed to Run, stops workers from
// claiming new scenarios. Scenarios already claimed run to completion, so a
// cancelled run's results are a prefix of the selection with nil entries
// for the scenarios that were never started.
//
// Abort goes further: in-flight scenarios stop before their next turn, the
// pending request's context is cancelled, and each cut scenario fails with
// an "execution" result naming how many messages were sent.
//
// # Usage
//
//	h := harness.New(client, harness.WithLogger(logger))
//	h.OnProgress(func(p harness.Progress) {
//	    fmt.Fprintln(os.Stderr, p) // [3/10] Basic greeting (2 pass, 0 warn, 1 fail)
//	})
//	summary, err := h.SelectAndRun(ctx, index, "suite:smoke", 4)
package harness
