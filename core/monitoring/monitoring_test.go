package monitoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalMonitor(t *testing.T) {
	mem := &MemoryMonitor{}
	prev := Init(mem)
	defer Init(prev)

	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"module": "mqtt"})
	CapturePanic("bad state", nil)
	CapturePanic(nil, nil)

	caps := mem.Captures()
	require.Len(t, caps, 2)
	assert.EqualError(t, caps[0].Err, "boom")
	assert.Equal(t, "mqtt", caps[0].Tags["module"])
	assert.EqualError(t, caps[1].Err, "panic: bad state")
}

func TestInitIgnoresNil(t *testing.T) {
	mem := &MemoryMonitor{}
	prev := Init(mem)
	defer Init(prev)
	Init(nil)
	CaptureException(errors.New("x"), nil)
	assert.Len(t, mem.Captures(), 1)
}
