package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inputSRT = "1\n00:00:01,000 --> 00:00:02,000\nGood morning.\n\n2\n00:00:03,000 --> 00:00:04,000\nSee you tomorrow.\n"

func newFakeGoogle(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate_a/single", r.URL.Path)
		assert.Equal(t, "tr", r.URL.Query().Get("tl"))
		lines := strings.Split(r.FormValue("q"), "\n")
		for i := range lines {
			lines[i] = "TR " + lines[i]
		}
		_ = json.NewEncoder(w).Encode([]any{
			[]any{[]any{strings.Join(lines, "\n"), r.FormValue("q")}},
			nil,
			"en",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTranslateCommand(t *testing.T) {
	srv := newFakeGoogle(t)
	t.Setenv("TRANSLATE_BASE_URL", srv.URL)

	dir := t.TempDir()
	in := filepath.Join(dir, "movie.srt")
	require.NoError(t, os.WriteFile(in, []byte(inputSRT), 0o600))

	cmd := newRootCommand()
	cmd.SetArgs([]string{"translate", in, "--lang", "tr", "--env-file", filepath.Join(dir, "missing.env")})
	require.NoError(t, cmd.Execute())

	out, err := os.ReadFile(filepath.Join(dir, "movie.tr.srt"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte{0xEF, 0xBB, 0xBF}))
	assert.Contains(t, string(out), "00:00:03,000 --> 00:00:04,000\nTR See you tomorrow.\n")
}

func TestTranslateCommand_Stdout(t *testing.T) {
	srv := newFakeGoogle(t)
	t.Setenv("TRANSLATE_BASE_URL", srv.URL)

	dir := t.TempDir()
	in := filepath.Join(dir, "movie.srt")
	require.NoError(t, os.WriteFile(in, []byte(inputSRT), 0o600))

	stdout := new(bytes.Buffer)
	cmd := newRootCommand()
	cmd.SetOut(stdout)
	cmd.SetArgs([]string{"translate", in, "-l", "tr", "-o", "-", "--bom=false", "--env-file", filepath.Join(dir, "missing.env")})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "1\n00:00:01,000 --> 00:00:02,000\nTR Good morning.\n\n2\n00:00:03,000 --> 00:00:04,000\nTR See you tomorrow.\n", stdout.String())
}

func TestTranslateCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	missingEnv := filepath.Join(dir, "missing.env")

	tests := []struct {
		name string
		args []string
	}{
		{"no file argument", []string{"translate"}},
		{"unsupported language", []string{"translate", "x.srt", "--lang", "xx", "--env-file", missingEnv}},
		{"missing file", []string{"translate", filepath.Join(dir, "nope.srt"), "--env-file", missingEnv}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCommand()
			cmd.SetArgs(tt.args)
			assert.Error(t, cmd.Execute())
		})
	}
}
