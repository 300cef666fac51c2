package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoader(t *testing.T, path, env string) (*Loader, string) {
	t.Helper()
	dir := t.TempDir()
	l := NewLoader(path)
	l.getenv = func(key string) string {
		if key == EnvConfigFile {
			return env
		}
		return ""
	}
	l.home = func() (string, error) { return dir, nil }
	l.system = filepath.Join(dir, "system")
	return l, dir
}

func write(t *testing.T, name, text string) {
	t.Helper()
	require.Nil(t, os.WriteFile(name, []byte(text), 0o644))
}

func TestLoaderResolve(t *testing.T) {
	for _, tc := range []struct {
		name     string
		files    []string
		path     string
		env      string
		expected string
	}{
		{name: "home", files: []string{UserFile, "system"}, expected: UserFile},
		{name: "system fallback", files: []string{"system"}, expected: "system"},
		{name: "environment", files: []string{"env", UserFile}, env: "env", expected: "env"},
		{name: "explicit", files: []string{"explicit", "env"}, path: "explicit", env: "env", expected: "explicit"},
		{name: "missing explicit falls back to system", files: []string{"system", UserFile}, path: "explicit", expected: "system"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			l, dir := testLoader(t, "", "")
			if tc.path != "" {
				l.Path = filepath.Join(dir, tc.path)
			}
			if tc.env != "" {
				env := filepath.Join(dir, tc.env)
				l.getenv = func(string) string { return env }
			}
			for _, f := range tc.files {
				write(t, filepath.Join(dir, f), "")
			}
			name, _, err := l.Resolve()
			require.Nil(t, err)
			assert.Equal(t, filepath.Join(dir, tc.expected), name)
		})
	}

	l, _ := testLoader(t, "", "")
	_, _, err := l.Resolve()
	assert.True(t, errors.Is(err, ErrNoConfig))
	_, err = l.Poll()
	assert.True(t, errors.Is(err, ErrNoConfig))
}

func TestLoaderPoll(t *testing.T) {
	l, dir := testLoader(t, "", "")
	name := filepath.Join(dir, UserFile)
	write(t, name, "[Default]\nC5 XK_a\n")

	res, err := l.Poll()
	require.Nil(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, len(res.Set.Sections))
	assert.Equal(t, name, l.File())

	res, err = l.Poll()
	require.Nil(t, err)
	assert.Nil(t, res, "unchanged file is not compiled again")

	write(t, name, "[Default]\nC5 XK_b\n[Other] other\n")
	later := time.Now().Add(time.Minute)
	require.Nil(t, os.Chtimes(name, later, later))

	res, err = l.Poll()
	require.Nil(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 2, len(res.Set.Sections))

	system := l.system
	write(t, system, "[Default]\n")
	require.Nil(t, os.Remove(name))
	res, err = l.Poll()
	require.Nil(t, err)
	require.NotNil(t, res, "switching files reloads")
	assert.Equal(t, system, l.File())
}

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "midizap.ini")
	write(t, name, "")

	ctx, cancel := context.WithCancel(context.Background())
	changes, err := WatchFile(ctx, name)
	require.Nil(t, err)

	write(t, filepath.Join(dir, "other.ini"), "x")
	write(t, name, "[midizap]\n")

	select {
	case got := <-changes:
		assert.Equal(t, name, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	for range changes {
	}
}
