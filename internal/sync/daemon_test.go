package sync

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/metta-indexer/internal/config"
	"github.com/randalmurphal/metta-indexer/internal/indexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	calls int
	err   error
}

func (r *countingRunner) Index(context.Context, string, *config.RepoConfig) (*indexer.IndexResult, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &indexer.IndexResult{FilesProcessed: 1}, nil
}

func git(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	require.NoError(t, cmd.Run())
}

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	tmpDir := t.TempDir()
	git(t, tmpDir, "init")
	git(t, tmpDir, "config", "user.email", "test@test.com")
	git(t, tmpDir, "config", "user.name", "Test")
	return tmpDir
}

func commit(t *testing.T, dir, content, msg string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.metta"), []byte(content), 0644))
	git(t, dir, "add", ".")
	git(t, dir, "commit", "-m", msg)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestGetGitHead(t *testing.T) {
	dir := initRepo(t)
	commit(t, dir, "(= (f) 1)", "initial")

	head, err := getGitHead(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, head, 40, "HEAD should be 40 char hash")
}

func TestDaemonSyncsOnNewCommit(t *testing.T) {
	dir := initRepo(t)
	commit(t, dir, "(= (f) 1)", "initial")

	runner := &countingRunner{}
	repo := RepoWatch{Name: "r", Path: dir, Config: config.DefaultRepoConfig(dir)}
	d := NewDaemon([]RepoWatch{repo}, time.Minute, runner, quietLogger())
	ctx := context.Background()

	ran, err := d.syncRepo(ctx, repo)
	require.NoError(t, err)
	assert.True(t, ran)

	ran, err = d.syncRepo(ctx, repo)
	require.NoError(t, err)
	assert.False(t, ran, "unchanged HEAD is skipped")

	commit(t, dir, "(= (f) 2)", "update")
	ran, err = d.syncRepo(ctx, repo)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, runner.calls)
}

func TestDaemonFingerprintWithoutGit(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "rules.metta")
	require.NoError(t, os.WriteFile(file, []byte("(= (f) 1)"), 0644))

	runner := &countingRunner{}
	repo := RepoWatch{Name: "plain", Path: dir}
	d := NewDaemon([]RepoWatch{repo}, time.Minute, runner, quietLogger())
	ctx := context.Background()

	ran, err := d.syncRepo(ctx, repo)
	require.NoError(t, err)
	assert.True(t, ran)

	ran, err = d.syncRepo(ctx, repo)
	require.NoError(t, err)
	assert.False(t, ran)

	require.NoError(t, os.WriteFile(file, []byte("(= (f) 12345)"), 0644))
	ran, err = d.syncRepo(ctx, repo)
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestDaemonRetriesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.metta"), []byte("(a)"), 0644))

	runner := &countingRunner{err: errors.New("qdrant down")}
	repo := RepoWatch{Name: "r", Path: dir}
	d := NewDaemon([]RepoWatch{repo}, time.Minute, runner, quietLogger())

	_, err := d.syncRepo(context.Background(), repo)
	assert.Error(t, err)

	runner.err = nil
	ran, err := d.syncRepo(context.Background(), repo)
	require.NoError(t, err)
	assert.True(t, ran, "failed runs do not record the revision")
}

func TestTruncateHash(t *testing.T) {
	assert.Equal(t, "abc12345", truncateHash("abc12345678901234567890"))
	assert.Equal(t, "short", truncateHash("short"))
	assert.Equal(t, "", truncateHash(""))
}

func TestDaemonRunCancellation(t *testing.T) {
	daemon := NewDaemon([]RepoWatch{}, time.Hour, &countingRunner{}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error)
	go func() {
		done <- daemon.Run(ctx)
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("daemon did not stop after cancellation")
	}
}
