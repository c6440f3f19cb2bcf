package harness

import (
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir is where scenario traces are kept, relative to the test's
// package directory.
const GoldenDir = "testdata/golden"

// AssertGolden compares the trace against testdata/golden/<name>.golden.
// Run the test with -update to rewrite the file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(result.TraceText()))
}

// RunWithGolden loads a scenario, runs it, fails the test on any mismatch
// and compares the trace with the scenario's golden file.
func RunWithGolden(t *testing.T, path string) *Result {
	t.Helper()
	s, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("load %s: %v", filepath.Base(path), err)
	}
	result, err := Run(s)
	if err != nil {
		t.Fatalf("run %s: %v", s.Name, err)
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", s.Name, msg)
	}
	AssertGolden(t, s.Name, result)
	return result
}
