package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func collect(p *Pool[int]) map[string]*Result {
	out := map[string]*Result{}
	for r := range p.Results() {
		out[r.TaskID] = r
	}
	return out
}

func TestPoolProcessesAndRetries(t *testing.T) {
	var flakyCalls int64
	fn := func(_ context.Context, task *Task[int]) *Result {
		switch task.Payload {
		case 1:
			return &Result{Success: true, Data: task.Payload * 10}
		case 2:
			if atomic.AddInt64(&flakyCalls, 1) > 1 {
				return &Result{Success: true}
			}
			return &Result{Error: errors.New("flaky")}
		default:
			return &Result{Error: errors.New("rejected"), Permanent: true}
		}
	}

	cfg := Config{Workers: 1, QueueSize: 8, MaxRetries: 2, RetryDelay: time.Millisecond}
	p, err := New(cfg, fn, zaptest.NewLogger(t))
	require.NoError(t, err)
	p.Start()

	require.NoError(t, p.Submit(&Task[int]{ID: "ok", Payload: 1}))
	require.NoError(t, p.Submit(&Task[int]{ID: "flaky", Payload: 2}))
	require.NoError(t, p.Submit(&Task[int]{ID: "perm", Payload: 3}))
	require.NoError(t, p.Stop())

	results := collect(p)
	require.Len(t, results, 3)

	assert.True(t, results["ok"].Success)
	assert.Equal(t, 10, results["ok"].Data)
	assert.Equal(t, 1, results["ok"].Attempts)

	assert.True(t, results["flaky"].Success)
	assert.Equal(t, 2, results["flaky"].Attempts)

	assert.False(t, results["perm"].Success)
	assert.Equal(t, 1, results["perm"].Attempts)
	assert.EqualError(t, results["perm"].Error, "rejected")

	stats := p.Stats()
	assert.Equal(t, int64(3), stats.TasksSubmitted)
	assert.Equal(t, int64(2), stats.TasksCompleted)
	assert.Equal(t, int64(1), stats.TasksFailed)
	assert.Equal(t, int64(1), stats.TasksRetried)
}

func TestPoolRejectsAfterStop(t *testing.T) {
	p, err := New(DefaultConfig(), func(context.Context, *Task[int]) *Result { return nil }, nil)
	require.NoError(t, err)
	p.Start()
	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())

	assert.ErrorIs(t, p.Submit(&Task[int]{ID: "late"}), ErrShuttingDown)
	assert.ErrorIs(t, p.SubmitBlocking(context.Background(), &Task[int]{ID: "late"}), ErrShuttingDown)
}

func TestPoolQueueFull(t *testing.T) {
	p, err := New(Config{Workers: 1, QueueSize: 1}, func(context.Context, *Task[int]) *Result { return nil }, nil)
	require.NoError(t, err)

	require.NoError(t, p.Submit(&Task[int]{ID: "a"}))
	assert.ErrorIs(t, p.Submit(&Task[int]{ID: "b"}), ErrQueueFull)
	assert.False(t, p.IsHealthy())

	p.Start()
	require.NoError(t, p.Stop())
}

func TestNewRequiresWorkerFunc(t *testing.T) {
	_, err := New[int](DefaultConfig(), nil, nil)
	assert.Error(t, err)
}
