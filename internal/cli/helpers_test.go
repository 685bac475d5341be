package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/convoprobe/internal/assistant"
	"github.com/roach88/convoprobe/internal/harness"
	"github.com/roach88/convoprobe/internal/testutil"
)

// fixture is a temp directory holding a config file and a copy of the
// catalog test data, plus a scripted assistant that passes every scenario.
type fixture struct {
	dir       string
	catalog   string
	config    string
	assistant *testutil.ScriptedAssistant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	for _, env := range []string{"CONVOPROBE_ASSISTANT_URL", "CONVOPROBE_CONCURRENCY", "CONVOPROBE_DATABASE"} {
		t.Setenv(env, "")
		require.NoError(t, os.Unsetenv(env))
	}

	dir := t.TempDir()
	data, err := os.ReadFile(filepath.Join("..", "catalog", "testdata", "scenarios.yaml"))
	require.NoError(t, err)

	f := &fixture{
		dir:     dir,
		catalog: filepath.Join(dir, "scenarios.yaml"),
		config:  filepath.Join(dir, "convoprobe.yaml"),
		assistant: testutil.NewScriptedAssistant(map[string]assistant.Reply{
			"Hi there!":               {Response: "Hello! Welcome to the hostel.", DetectedLanguage: "en", MessageType: "text"},
			"Selamat pagi":            {Response: "Selamat pagi! Apa khabar?", DetectedLanguage: "ms", MessageType: "text"},
			"What time is breakfast?": {Response: "Breakfast is served from 7am.", Confidence: 0.9},
			"Here is my payment slip": {Response: "Thanks, we received your slip.", MessageType: "image"},
		}),
	}
	require.NoError(t, os.WriteFile(f.catalog, data, 0644))
	f.writeConfig(t, "")
	return f
}

// writeConfig writes a config pointing at the fixture catalog, followed by extra.
func (f *fixture) writeConfig(t *testing.T, extra string) {
	t.Helper()
	content := fmt.Sprintf("catalog: %q\n", f.catalog) + extra
	require.NoError(t, os.WriteFile(f.config, []byte(content), 0644))
}

func (f *fixture) rootOptions(format string) *RootOptions {
	return &RootOptions{Format: format, ConfigPath: f.config, Client: f.assistant}
}

// runOptions returns run options with a stepping clock and fixed run ids.
func (f *fixture) runOptions(format string, ids ...string) *RunOptions {
	if len(ids) == 0 {
		ids = []string{"run-1"}
	}
	return &RunOptions{
		RootOptions: f.rootOptions(format),
		HarnessOptions: []harness.Option{
			harness.WithClock(testutil.NewStepClock(10 * time.Millisecond).Now),
			harness.WithIDGenerator(testutil.NewFixedGenerator(ids...)),
		},
	}
}

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// envelope decodes a CLIResponse keeping Data raw.
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
	RunID  string          `json:"run_id"`
}

func decodeEnvelope(t *testing.T, out string) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env), "output: %s", out)
	return env
}
