// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/sentry-fix-agent/internal/config"
)

// validCredentials are the six required values, all set.
func validCredentials() map[string]string {
	return map[string]string{
		config.KeySentryToken:   "sntrys_test",
		config.KeySentryOrg:     "acme",
		config.KeySentryProject: "tasks",
		config.KeyGitHubToken:   "ghp_test",
		config.KeyGitHubRepo:    "acme/tasks",
		config.KeyGeminiAPIKey:  "gemini-test-key",
	}
}

// setEnv sets the required keys present in values and unsets the others so
// the host environment never leaks into a test. An empty variable counts as
// set, so absent keys must not merely be blanked.
func setEnv(t *testing.T, values map[string]string) {
	t.Helper()
	for _, key := range config.RequiredKeys {
		value, ok := values[key]
		t.Setenv(key, value)
		if !ok {
			require.NoError(t, os.Unsetenv(key))
		}
	}
}

// writeConfigFile stores settings as a JSON file in a temp dir. Log and state
// files are kept inside the same dir unless settings override them.
func writeConfigFile(t *testing.T, settings map[string]any) (path, dir string) {
	t.Helper()
	dir = t.TempDir()

	doc := map[string]any{
		"logger": map[string]any{"level": "debug", "log_file": filepath.Join(dir, "agent.log")},
		"state":  map[string]any{"last_run_file": filepath.Join(dir, "last_run.txt")},
	}
	for k, v := range settings {
		doc[k] = v
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	path = filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path, dir
}

// executeCommand runs a fresh command tree and captures its output.
func executeCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root := newRootCmd()
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)

	err = execute(context.Background(), root)
	return outBuf.String(), errBuf.String(), err
}
