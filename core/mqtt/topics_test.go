package mqtt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vending/core/model"
)

func TestTopics(t *testing.T) {
	tp := Topics{}
	assert.Equal(t, "vending/shelf/5", tp.Command(5))
	assert.Equal(t, "vending/heartbit/2", tp.Heartbeat(2))
	assert.Equal(t, "vending/response/1", tp.Response(1))
	assert.Equal(t, "vending/heartbit/+", tp.HeartbeatFilter())

	custom := Topics{Prefix: "lab/"}
	assert.Equal(t, "lab/response/+", custom.ResponseFilter())
	assert.Equal(t, "lab/shelf/+", custom.CommandFilter())
}

func TestShelfFromTopic(t *testing.T) {
	s, err := ShelfFromTopic("vending/response/4")
	require.NoError(t, err)
	assert.Equal(t, model.ShelfID(4), s)

	for _, bad := range []string{"vending/response/", "vending/response/x", "nope"} {
		_, err := ShelfFromTopic(bad)
		assert.True(t, errors.Is(err, ErrInvalidTopic), bad)
	}
}

func TestParseCommand(t *testing.T) {
	it, err := ParseCommand("30,2")
	require.NoError(t, err)
	assert.Equal(t, model.ItemRef{ID: 30, Quantity: 2}, it)

	_, err = ParseCommand("30")
	assert.Error(t, err)
	_, err = ParseCommand("a,2")
	assert.Error(t, err)
}
