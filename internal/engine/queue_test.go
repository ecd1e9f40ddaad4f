package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deal-scanner/internal/models"
)

// blockingExecutor holds each job until the test releases it, so tests can
// observe the queue with jobs pinned in the running state.
type blockingExecutor struct {
	queue   *ExecutionQueue
	started chan *models.ScanJob
	release chan struct{}
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{
		started: make(chan *models.ScanJob, 32),
		release: make(chan struct{}),
	}
}

func (e *blockingExecutor) Run(job *models.ScanJob) {
	e.started <- job
	<-e.release
	e.queue.OnJobFinished(job.JobID)
}

func (e *blockingExecutor) awaitStart(t *testing.T) *models.ScanJob {
	t.Helper()
	select {
	case job := <-e.started:
		return job
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a job to start")
		return nil
	}
}

func (e *blockingExecutor) assertNoStart(t *testing.T) {
	t.Helper()
	select {
	case job := <-e.started:
		t.Fatalf("unexpected job start: %s", job.JobID)
	case <-time.After(50 * time.Millisecond):
	}
}

func newTestQueue(maxTabs, maxPending int) (*ExecutionQueue, *blockingExecutor) {
	dir := newFakeDirectory(models.AutomationSettings{Enabled: true, MaxTabsOpen: maxTabs})
	exec := newBlockingExecutor()
	q := NewExecutionQueue(exec, dir, maxPending, testLogger())
	exec.queue = q
	return q, exec
}

func TestSubmit_StartsImmediatelyUnderCap(t *testing.T) {
	q, exec := newTestQueue(2, 100)
	defer close(exec.release)

	require.NoError(t, q.Submit(models.NewScanJob("s1")))
	require.NoError(t, q.Submit(models.NewScanJob("s2")))

	exec.awaitStart(t)
	exec.awaitStart(t)
	assert.Equal(t, 2, q.InFlight())
	assert.Equal(t, 0, q.Depth())
}

func TestSubmit_QueuesPastCap(t *testing.T) {
	q, exec := newTestQueue(1, 100)
	defer close(exec.release)

	require.NoError(t, q.Submit(models.NewScanJob("s1")))
	exec.awaitStart(t)

	require.NoError(t, q.Submit(models.NewScanJob("s2")))
	exec.assertNoStart(t)

	assert.Equal(t, 1, q.InFlight())
	assert.Equal(t, 1, q.Depth())
}

func TestSubmit_DuplicateSearchRejected(t *testing.T) {
	q, exec := newTestQueue(1, 100)
	defer close(exec.release)

	require.NoError(t, q.Submit(models.NewScanJob("s1")))
	exec.awaitStart(t)

	err := q.Submit(models.NewScanJob("s1"))
	assert.Error(t, err, "a search may have at most one outstanding job")
	assert.True(t, q.Outstanding("s1"))
}

func TestSubmit_DuplicateQueuedSearchRejected(t *testing.T) {
	q, exec := newTestQueue(1, 100)
	defer close(exec.release)

	require.NoError(t, q.Submit(models.NewScanJob("s1")))
	exec.awaitStart(t)
	require.NoError(t, q.Submit(models.NewScanJob("s2")))

	err := q.Submit(models.NewScanJob("s2"))
	assert.Error(t, err)
	assert.Equal(t, 1, q.Depth())
}

func TestSubmit_DepthCeiling(t *testing.T) {
	q, exec := newTestQueue(1, 2)
	defer close(exec.release)

	require.NoError(t, q.Submit(models.NewScanJob("s1")))
	exec.awaitStart(t)
	require.NoError(t, q.Submit(models.NewScanJob("s2")))
	require.NoError(t, q.Submit(models.NewScanJob("s3")))

	err := q.Submit(models.NewScanJob("s4"))
	assert.Error(t, err, "queue depth past the ceiling must be rejected")
}

func TestOnJobFinished_DispatchesFIFO(t *testing.T) {
	q, exec := newTestQueue(1, 100)

	require.NoError(t, q.Submit(models.NewScanJob("s1")))
	first := exec.awaitStart(t)
	assert.Equal(t, "s1", first.SearchID)

	require.NoError(t, q.Submit(models.NewScanJob("s2")))
	require.NoError(t, q.Submit(models.NewScanJob("s3")))

	// Finish s1; s2 must start before s3
	exec.release <- struct{}{}
	second := exec.awaitStart(t)
	assert.Equal(t, "s2", second.SearchID)

	exec.release <- struct{}{}
	third := exec.awaitStart(t)
	assert.Equal(t, "s3", third.SearchID)

	exec.release <- struct{}{}
	assert.Eventually(t, func() bool { return q.InFlight() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, q.Outstanding("s1"))
	assert.False(t, q.Outstanding("s2"))
	assert.False(t, q.Outstanding("s3"))
}

func TestOnJobFinished_UnknownJobIgnored(t *testing.T) {
	q, exec := newTestQueue(1, 100)
	defer close(exec.release)

	q.OnJobFinished("no-such-job")
	assert.Equal(t, 0, q.InFlight())
}

func TestSubmit_ResubmitAfterFinishAllowed(t *testing.T) {
	q, exec := newTestQueue(1, 100)

	require.NoError(t, q.Submit(models.NewScanJob("s1")))
	exec.awaitStart(t)
	exec.release <- struct{}{}

	assert.Eventually(t, func() bool { return !q.Outstanding("s1") }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, q.Submit(models.NewScanJob("s1")))
	exec.awaitStart(t)
	close(exec.release)
}
