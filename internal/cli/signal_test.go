package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/convoprobe/internal/assistant"
	"github.com/roach88/convoprobe/internal/catalog"
	"github.com/roach88/convoprobe/internal/harness"
	"github.com/roach88/convoprobe/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSecondInterruptAbortsInFlightConversation(t *testing.T) {
	inTurn := make(chan struct{}, 1)
	fake := testutil.NewScriptedAssistant(nil)
	fake.ConverseFunc = func(ctx context.Context, req assistant.ConverseRequest) (*assistant.ConverseReply, error) {
		select {
		case inTurn <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	h := harness.New(fake)

	scenarios := []catalog.Scenario{
		{
			ID:       "booking-flow",
			Name:     "Booking flow",
			Category: "workflow",
			Messages: []catalog.Message{{Text: "I want to book"}, {Text: "Two nights"}, {Text: "Confirm"}},
		},
		{ID: "greeting-basic", Name: "Basic greeting", Category: "greeting", Messages: []catalog.Message{{Text: "Hi there!"}}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	released := make(chan struct{})
	handled := make(chan struct{})
	go func() {
		handleInterrupts(ctx, sigs, h, nil, func() { close(released) }, discardLogger())
		close(handled)
	}()

	done := make(chan *harness.RunSummary, 1)
	go func() {
		s, err := h.Run(ctx, scenarios, 1)
		assert.NoError(t, err)
		done <- s
	}()

	select {
	case <-inTurn:
	case <-time.After(5 * time.Second):
		t.Fatal("conversation never started")
	}

	sigs <- os.Interrupt
	select {
	case <-done:
		t.Fatal("the first interrupt must let the conversation finish")
	case <-time.After(50 * time.Millisecond):
	}

	sigs <- os.Interrupt
	var summary *harness.RunSummary
	select {
	case summary = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("the second interrupt did not abort the run")
	}

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("default signal handling was not restored")
	}
	<-handled

	require.NotNil(t, summary)
	assert.True(t, summary.Cancelled)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.FailCount)
	assert.Nil(t, summary.Results[1])
	assert.Len(t, fake.ConverseCalls(), 1)
	assert.Empty(t, fake.ClassifyCalls())
}

type interruptRecorder struct {
	cancels, aborts int
}

func (r *interruptRecorder) RequestCancel() { r.cancels++ }
func (r *interruptRecorder) Abort()         { r.aborts++ }

func TestHandleInterrupts(t *testing.T) {
	t.Run("first_signal_cancels", func(t *testing.T) {
		rec := &interruptRecorder{}
		sigs := make(chan os.Signal, 1)
		ctx, cancel := context.WithCancel(context.Background())

		firsts := 0
		sigs <- os.Interrupt
		done := make(chan struct{})
		go func() {
			handleInterrupts(ctx, sigs, rec, func() { firsts++ }, func() { t.Error("release called") }, discardLogger())
			close(done)
		}()

		// The handler is waiting for a second signal once the first is consumed.
		require.Eventually(t, func() bool { return len(sigs) == 0 }, time.Second, time.Millisecond)
		cancel()
		<-done

		assert.Equal(t, 1, rec.cancels)
		assert.Equal(t, 0, rec.aborts)
		assert.Equal(t, 1, firsts)
	})

	t.Run("context_done_before_signal", func(t *testing.T) {
		rec := &interruptRecorder{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		handleInterrupts(ctx, make(chan os.Signal), rec, nil, func() { t.Error("release called") }, discardLogger())
		assert.Equal(t, 0, rec.cancels)
		assert.Equal(t, 0, rec.aborts)
	})

	t.Run("second_signal_aborts_and_releases", func(t *testing.T) {
		rec := &interruptRecorder{}
		sigs := make(chan os.Signal, 2)
		sigs <- os.Interrupt
		sigs <- os.Interrupt

		released := 0
		handleInterrupts(context.Background(), sigs, rec, nil, func() { released++ }, discardLogger())
		assert.Equal(t, 1, rec.cancels)
		assert.Equal(t, 1, rec.aborts)
		assert.Equal(t, 1, released)
	})
}
