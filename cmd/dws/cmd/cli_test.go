package cmd

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type exitMocks struct {
	fatalCalls int
	codes      []int
}

func (m *exitMocks) Fatalf(string, ...interface{}) { m.fatalCalls++ }
func (m *exitMocks) Fatalln(...interface{})        { m.fatalCalls++ }
func (m *exitMocks) Exit(code int) {
	m.fatalCalls++
	m.codes = append(m.codes, code)
}

var mocks *exitMocks

func setupTests(t *testing.T) string {
	mocks = new(exitMocks)
	logFatalf, logFatalln, osExit = mocks.Fatalf, mocks.Fatalln, mocks.Exit
	t.Cleanup(func() {
		logFatalf, logFatalln, osExit = defaultFatalf, defaultFatalln, os.Exit
	})
	return t.TempDir()
}

var (
	defaultFatalf  = logFatalf
	defaultFatalln = logFatalln
)

// runCmd executes a command line, and checks whether it failed as expected
func runCmd(t *testing.T, args []string, intentMsg string, expectError bool) string {
	t.Helper()
	before := mocks.fatalCalls
	dwsFlags = flagsT{}
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	failed := err != nil || mocks.fatalCalls > before
	if expectError {
		assert.True(t, failed, "expected failure: %s", intentMsg)
	} else {
		require.NoError(t, err, intentMsg)
		assert.Equal(t, before, mocks.fatalCalls, "unexpected failure: %s", intentMsg)
	}
	return out.String()
}

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, ioutil.WriteFile(p, []byte(content), 0644))
}

func TestWorkflow(t *testing.T) {
	dir := setupTests(t)
	ws := []string{"--workspace", dir, "--batch", "--loglevel", "none"}
	with := func(args ...string) []string { return append(args, ws...) }

	out := runCmd(t, with("init", "experiment", "--no-git", "--hostname", "testhost"), "init workspace", false)
	assert.Contains(t, out, "Initialized workspace experiment")
	runCmd(t, with("init", "--no-git"), "init again", true)

	writeFile(t, filepath.Join(dir, "data", "train.csv"), "1,2\n")
	writeFile(t, filepath.Join(dir, "results", "results.json"), `{"metrics": {"accuracy": 0.8}}`)
	runCmd(t, with("add", "file", "data", "--role", "source-data", "--compute-hash"), "add data", false)
	runCmd(t, with("add", "file", "results", "--role", "results"), "add results", false)
	runCmd(t, with("add", "file", "data", "--role", "source-data"), "duplicate resource", true)
	runCmd(t, with("add", "file", "other", "--role", "bogus"), "bad role", true)

	out = runCmd(t, with("resources", "--output", "json"), "list resources", false)
	assert.Contains(t, out, `"name": "data"`)
	assert.Contains(t, out, `"role": "results"`)
	out = runCmd(t, with("resources"), "resources table", false)
	assert.Contains(t, out, "SIZE")
	assert.Contains(t, out, "4B")

	out = runCmd(t, with("snapshot", "baseline", "-m", "first"), "take snapshot", false)
	assert.Contains(t, out, "Snapshot 1 (baseline)")
	runCmd(t, with("snapshot", "baseline"), "reuse tag", true)
	assert.Equal(t, []int{exitInvalidArg}, mocks.codes[len(mocks.codes)-1:])
	runCmd(t, with("snapshot", "abcdef123"), "hash-like tag", true)

	writeFile(t, filepath.Join(dir, "data", "train.csv"), "5,6\n")
	runCmd(t, with("snapshot"), "untagged snapshot", false)
	runCmd(t, with("tag", "2", "second"), "tag by number", true)

	out = runCmd(t, with("history"), "history table", false)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "NUMBER")
	assert.Contains(t, lines[1], "baseline")
	assert.Contains(t, lines[1], "accuracy=0.8")

	out = runCmd(t, with("history", "--output", "yaml"), "history yaml", false)
	assert.Contains(t, out, "number: 2")

	runCmd(t, with("restore", "baseline"), "restore over changed data", true)
	assert.Equal(t, []int{exitMismatch}, mocks.codes[len(mocks.codes)-1:])
	runCmd(t, with("restore", "baseline", "--leave", "data"), "restore leaving data", false)
	runCmd(t, with("restore", "nope"), "unknown snapshot", true)

	out = runCmd(t, with("lineage", "validate"), "validate lineage", false)
	assert.Contains(t, out, "warning(s)")

	runCmd(t, with("config", "set", "owner", "data-team"), "set param", false)
	runCmd(t, with("config", "set", "--local", "threads", "4"), "set local param", false)
	out = runCmd(t, with("config", "get", "owner"), "get param", false)
	assert.Equal(t, "data-team\n", out)
	out = runCmd(t, with("config", "get", "--local", "hostname"), "get hostname", false)
	assert.Equal(t, "testhost\n", out)
	runCmd(t, with("config", "get", "missing"), "missing param", true)

	runCmd(t, with("delete-snapshot", "baseline", "--remove-results"), "delete snapshot", false)
	assert.NoDirExists(t, filepath.Join(dir, "results", model.ResultsSnapshotsDir, "testhost-baseline"))
	out = runCmd(t, with("history", "--output", "json"), "history after delete", false)
	assert.NotContains(t, out, "baseline")

	runCmd(t, with("push"), "push without remote", false)
}

func TestVersion(t *testing.T) {
	setupTests(t)
	out := runCmd(t, []string{"version"}, "version", false)
	assert.Contains(t, out, "Version: dev")
	out = runCmd(t, []string{"version", "--output", "json"}, "version as json", false)
	assert.Contains(t, out, `"metadataVersion": 1`)
}

func TestNotAWorkspace(t *testing.T) {
	dir := setupTests(t)
	runCmd(t, []string{"history", "--workspace", dir}, "history outside of a workspace", true)
	assert.Equal(t, []int{exitConfiguration}, mocks.codes)
}
