package mqtt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kilianp07/vending/core/model"
)

// DefaultPrefix is the topic root used by the shelf firmware.
const DefaultPrefix = "vending"

// ResponseSuccess is the only response payload treated as a dispensed item.
const ResponseSuccess = "success"

// Topics builds the per-shelf topic names under a common prefix.
// The heartbeat segment is "heartbit", matching the deployed firmware.
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// Command is the outbound topic for a shelf.
func (t Topics) Command(shelf model.ShelfID) string {
	return fmt.Sprintf("%s/shelf/%d", t.prefix(), shelf)
}

// Heartbeat is the inbound liveness topic for a shelf.
func (t Topics) Heartbeat(shelf model.ShelfID) string {
	return fmt.Sprintf("%s/heartbit/%d", t.prefix(), shelf)
}

// Response is the inbound dispense result topic for a shelf.
func (t Topics) Response(shelf model.ShelfID) string {
	return fmt.Sprintf("%s/response/%d", t.prefix(), shelf)
}

// HeartbeatFilter subscribes to every shelf heartbeat.
func (t Topics) HeartbeatFilter() string { return t.prefix() + "/heartbit/+" }

// ResponseFilter subscribes to every shelf response.
func (t Topics) ResponseFilter() string { return t.prefix() + "/response/+" }

// CommandFilter subscribes to every shelf command, used by simulators.
func (t Topics) CommandFilter() string { return t.prefix() + "/shelf/+" }

// ShelfFromTopic extracts the trailing shelf id of a topic.
func ShelfFromTopic(topic string) (model.ShelfID, error) {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx == len(topic)-1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	n, err := strconv.Atoi(topic[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	return model.ShelfID(n), nil
}

// ParseCommand decodes a "<itemId>,<quantity>" payload.
func ParseCommand(payload string) (model.ItemRef, error) {
	idStr, qtyStr, ok := strings.Cut(strings.TrimSpace(payload), ",")
	if !ok {
		return model.ItemRef{}, fmt.Errorf("malformed command %q", payload)
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return model.ItemRef{}, fmt.Errorf("item id: %w", err)
	}
	qty, err := strconv.Atoi(qtyStr)
	if err != nil {
		return model.ItemRef{}, fmt.Errorf("quantity: %w", err)
	}
	return model.ItemRef{ID: id, Quantity: qty}, nil
}
