package schedule

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wpguard/internal/domain/changelog"
	"wpguard/internal/platform/errors"
	platformtesting "wpguard/internal/platform/testing"
)

// blockingChecker holds every pass until release is closed.
type blockingChecker struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
	err     error
	ctxErr  error
}

func newBlockingChecker() *blockingChecker {
	return &blockingChecker{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (c *blockingChecker) CheckAll(ctx context.Context) (*changelog.Report, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	c.started <- struct{}{}

	if err := ctx.Err(); err != nil {
		c.mu.Lock()
		c.ctxErr = err
		c.mu.Unlock()
		return nil, err
	}
	select {
	case <-c.release:
	case <-ctx.Done():
		c.mu.Lock()
		c.ctxErr = ctx.Err()
		c.mu.Unlock()
		return nil, ctx.Err()
	}
	if c.err != nil {
		return nil, c.err
	}
	return &changelog.Report{RunID: "run-1"}, nil
}

func (c *blockingChecker) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func waitStarted(t *testing.T, c *blockingChecker) {
	t.Helper()
	select {
	case <-c.started:
	case <-time.After(2 * time.Second):
		t.Fatal("check pass did not start")
	}
}

func TestNew_Validation(t *testing.T) {
	logger := platformtesting.NewLogger(t)

	_, err := New("@daily", nil, logger)
	require.Error(t, err)

	_, err = New("every day", newBlockingChecker(), logger)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConfig))

	for _, spec := range []string{"@daily", "@every 1h", "30 3 * * *"} {
		_, err := New(spec, newBlockingChecker(), logger)
		assert.NoError(t, err, spec)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := New("@daily", newBlockingChecker(), platformtesting.NewLogger(t))
	require.NoError(t, err)

	assert.True(t, s.Next().IsZero())
	require.NoError(t, s.Start())
	require.NoError(t, s.Start())

	next := s.Next()
	assert.False(t, next.IsZero())
	assert.True(t, next.After(time.Now()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.True(t, s.Next().IsZero())
}

func TestScheduler_OverlappingTickIsSkipped(t *testing.T) {
	checker := newBlockingChecker()
	s, err := New("@daily", checker, platformtesting.NewLogger(t))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Trigger()
		close(done)
	}()
	waitStarted(t, checker)
	assert.Equal(t, RunStatusRunning, s.Last().Status)

	// the second tick returns immediately without calling the checker
	s.Trigger()
	assert.Equal(t, 1, checker.callCount())

	_, err = s.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 1, s.Skipped())

	close(checker.release)
	<-done

	last := s.Last()
	assert.Equal(t, RunStatusComplete, last.Status)
	assert.Equal(t, "run-1", last.ID)
	assert.False(t, last.FinishedAt.Before(last.StartedAt))
}

func TestScheduler_RunNowRecordsFailure(t *testing.T) {
	checker := newBlockingChecker()
	checker.err = stderrors.New("watch list unavailable")
	close(checker.release)

	s, err := New("@daily", checker, platformtesting.NewLogger(t))
	require.NoError(t, err)

	_, err = s.RunNow(context.Background())
	require.Error(t, err)

	last := s.Last()
	assert.Equal(t, RunStatusFailed, last.Status)
	assert.Equal(t, "watch list unavailable", last.Error)
}

func TestScheduler_StopCancelsRunningPass(t *testing.T) {
	checker := newBlockingChecker()
	s, err := New("@daily", checker, platformtesting.NewLogger(t))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Trigger()
		close(done)
	}()
	waitStarted(t, checker)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("running pass was not cancelled")
	}
	checker.mu.Lock()
	assert.ErrorIs(t, checker.ctxErr, context.Canceled)
	checker.mu.Unlock()
}

func TestScheduler_RestartAfterStop(t *testing.T) {
	checker := newBlockingChecker()
	close(checker.release)
	s, err := New("@daily", checker, platformtesting.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Start())
	defer func() { _ = s.Stop(ctx) }()

	s.Trigger()
	waitStarted(t, checker)

	last := s.Last()
	assert.Equal(t, RunStatusComplete, last.Status)
	assert.Empty(t, last.Error)
	checker.mu.Lock()
	assert.NoError(t, checker.ctxErr)
	checker.mu.Unlock()
}

func TestScheduler_RunBlocksUntilCancelled(t *testing.T) {
	s, err := New("@every 1h", newBlockingChecker(), platformtesting.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return !s.Next().IsZero() }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
