package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu    sync.Mutex
	files []string
}

func (r *recorder) draw(_ context.Context, file string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, file)
	return nil
}

func (r *recorder) drawn() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.files...)
}

func newSession(draw DrawFunc) *Session {
	return New(draw, Options{Debounce: 20 * time.Millisecond, Logger: zap.NewNop().Sugar()})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestSession_ActivateDraws(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.go")
	writeFile(t, file, "package main\n")

	rec := &recorder{}
	s := newSession(rec.draw)
	assert.Empty(t, s.Active())

	require.NoError(t, s.Activate(file))
	assert.Equal(t, file, s.Active())
	assert.Equal(t, []string{file}, rec.drawn())
}

func TestSession_RedrawsOnWrite(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.go")
	other := filepath.Join(dir, "other.go")
	writeFile(t, file, "package main\n")
	writeFile(t, other, "package main\n")

	rec := &recorder{}
	s := newSession(rec.draw)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	require.NoError(t, s.Activate(file))

	writeFile(t, other, "package main\n\nfunc other() {}\n")
	writeFile(t, file, "package main\n\nfunc main() {}\n")

	require.Eventually(t, func() bool { return len(rec.drawn()) >= 2 }, 2*time.Second, 10*time.Millisecond)
	for _, f := range rec.drawn() {
		assert.Equal(t, file, f, "only the active file is redrawn")
	}
}

func TestSession_NewDrawCancelsInFlight(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.go")
	second := filepath.Join(dir, "b.go")

	started := make(chan struct{})
	var once sync.Once
	rec := &recorder{}
	s := newSession(func(ctx context.Context, file string) error {
		if file == first {
			once.Do(func() { close(started) })
			<-ctx.Done()
			return ctx.Err()
		}
		return rec.draw(ctx, file)
	})

	errc := make(chan error, 1)
	go func() { errc <- s.Activate(first) }()
	<-started

	require.NoError(t, s.Activate(second))
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, []string{second}, rec.drawn())
	assert.Equal(t, second, s.Active())
}

func TestSession_StopIsIdempotent(t *testing.T) {
	s := newSession((&recorder{}).draw)
	assert.NoError(t, s.Stop())

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop())
	assert.NoError(t, s.Stop())
}

func TestSession_ActivateAfterStop(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.go")
	writeFile(t, file, "package main\n")

	rec := &recorder{}
	s := newSession(rec.draw)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())

	require.NoError(t, s.Activate(file))
	assert.Equal(t, []string{file}, rec.drawn())
}
