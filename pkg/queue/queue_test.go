package queue

import (
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scanPayload struct {
	ScanID string `json:"scan_id"`
}

func TestTaskEnvelopeRoundTrip(t *testing.T) {
	task, err := NewTask("scan-1", TaskTypeScanProcess, scanPayload{ScanID: "scan-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, task.Priority)

	raw, err := json.Marshal(task)
	require.NoError(t, err)

	parsed, err := ParseTask(asynq.NewTask(TaskTypeScanProcess, raw))
	require.NoError(t, err)
	assert.Equal(t, "scan-1", parsed.ID)

	var p scanPayload
	require.NoError(t, parsed.Decode(&p))
	assert.Equal(t, "scan-1", p.ScanID)
}

func TestTaskDecodeEmptyPayload(t *testing.T) {
	task := &Task{ID: "x"}
	assert.Error(t, task.Decode(&scanPayload{}))

	_, err := ParseTask(asynq.NewTask(TaskTypeScanProcess, []byte("not json")))
	assert.Error(t, err)
}

func TestQueueFor(t *testing.T) {
	assert.Equal(t, QueueCritical, queueFor(1))
	assert.Equal(t, QueueDefault, queueFor(2))
	assert.Equal(t, QueueLow, queueFor(0))
	assert.Equal(t, "scan_status:abc", statusKey("abc"))
}
