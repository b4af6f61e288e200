package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordFailureClassification(t *testing.T) {
	c := New()

	c.RecordFailure(errors.New("context deadline exceeded"))
	c.RecordFailure(errors.New("dial tcp 127.0.0.1:1: connect: connection refused"))
	c.RecordFailure(errors.New("read: connection reset by peer"))
	c.RecordFailure(errors.New("lookup nope.invalid: no such host"))
	c.RecordFailure(errors.New("probe failed with status: 503"))
	c.RecordFailure(errors.New("something else entirely"))

	assert.Equal(t, 6, c.totalErrors)
	assert.Equal(t, 1, c.timeoutErrors)
	assert.Equal(t, 1, c.errorCounts["Timeout (Slow)"])
	assert.Equal(t, 1, c.errorCounts["Conn Refused (Fast)"])
	assert.Equal(t, 1, c.errorCounts["Conn Reset (Fast)"])
	assert.Equal(t, 1, c.errorCounts["DNS Error"])
	assert.Equal(t, 1, c.errorCounts["Bad HTTP Status"])
	assert.Equal(t, 1, c.errorCounts["Unknown"])
}

func TestRecordSuccess(t *testing.T) {
	c := New()

	c.RecordSuccess(100 * time.Millisecond)
	c.RecordSuccess(300 * time.Millisecond)

	assert.Len(t, c.latencies, 2)
	assert.Equal(t, 200*time.Millisecond, average(c.latencies))
}

func TestAverageEmpty(t *testing.T) {
	assert.Equal(t, time.Duration(0), average(nil))
}
