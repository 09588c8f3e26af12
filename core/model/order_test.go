package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemRefCommand(t *testing.T) {
	assert.Equal(t, "30,2", ItemRef{ID: 30, Quantity: 2}.Command())
}

func TestStatusEventJSON(t *testing.T) {
	b, err := json.Marshal(ItemEvent("o1", 5, 30, StatusDisconnected))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"orderStatus","id":30,"status":"Disconnected"}`, string(b))

	b, err = json.Marshal(CompleteEvent("o1", true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"orderComplete","success":true}`, string(b))
}

func TestOrderResultAllDispensed(t *testing.T) {
	res := OrderResult{Success: true, Items: []ItemOutcome{
		{ItemID: 1, Status: StatusDispensed},
		{ItemID: 30, Status: StatusDisconnected},
	}}
	assert.False(t, res.AllDispensed())
	assert.Equal(t, 1, res.Count(StatusDisconnected))

	res.Items[1].Status = StatusDispensed
	assert.True(t, res.AllDispensed())
	assert.False(t, OrderResult{}.AllDispensed())
}

func TestOrderQueueLen(t *testing.T) {
	q := OrderQueue{
		{Shelf: 5, Items: []ItemRef{{ID: 30, Quantity: 2}}},
		{Shelf: 1, Items: []ItemRef{{ID: 1, Quantity: 1}, {ID: 2, Quantity: 1}}},
	}
	assert.Equal(t, 3, q.Len())
}
