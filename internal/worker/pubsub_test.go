package worker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushgate/pushgate/internal/dispatch"
	"github.com/pushgate/pushgate/internal/push"
	"github.com/pushgate/pushgate/internal/subscriber"
)

type stubDispatcher struct {
	result *dispatch.Result
	err    error
	calls  int
}

func (d *stubDispatcher) NotifyUser(context.Context, string, string, string, map[string]any) (*dispatch.Result, error) {
	d.calls++
	return d.result, d.err
}

func newTestHandler(d Dispatcher) *PubSubHandler {
	return &PubSubHandler{
		dispatcher: d,
		jobTimeout: time.Second,
		logger:     zerolog.Nop(),
	}
}

func TestProcess_Success(t *testing.T) {
	dispatcher := &stubDispatcher{result: &dispatch.Result{Total: 2, Successful: 2}}
	h := newTestHandler(dispatcher)

	retry, err := h.process(context.Background(), []byte(`{"user_id":"u1","title":"t","body":"b"}`))
	require.NoError(t, err)
	assert.False(t, retry)
	assert.Equal(t, 1, dispatcher.calls)
}

func TestProcess_MalformedJob_NotRetried(t *testing.T) {
	h := newTestHandler(&stubDispatcher{})

	retry, err := h.process(context.Background(), []byte(`not json`))
	require.Error(t, err)
	assert.False(t, retry, "bad payloads must not be redelivered")
}

func TestProcess_IncompleteJob_NotRetried(t *testing.T) {
	h := newTestHandler(&stubDispatcher{})

	retry, err := h.process(context.Background(), []byte(`{"user_id":"u1"}`))
	require.Error(t, err)
	assert.False(t, retry)
}

func TestProcess_UnknownUser_NotRetried(t *testing.T) {
	h := newTestHandler(&stubDispatcher{err: subscriber.ErrNotFound})

	retry, err := h.process(context.Background(), []byte(`{"user_id":"u1","title":"t","body":"b"}`))
	require.Error(t, err)
	assert.False(t, retry, "unknown users do not appear on redelivery")
}

func TestProcess_TransientFailure_Retried(t *testing.T) {
	h := newTestHandler(&stubDispatcher{err: &push.NetworkError{Op: "token exchange"}})

	retry, err := h.process(context.Background(), []byte(`{"user_id":"u1","title":"t","body":"b"}`))
	require.Error(t, err)
	assert.True(t, retry, "transient failures are worth redelivering")
}
