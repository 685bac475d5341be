package harness

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// AssertGolden renders the text report of s and compares it with
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, s *RunSummary) {
	t.Helper()

	var buf bytes.Buffer
	if err := WriteText(&buf, s); err != nil {
		t.Fatalf("render report: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, buf.Bytes())
}
