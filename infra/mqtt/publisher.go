package mqtt

import (
	"fmt"
	"sync"

	"github.com/kilianp07/vending/core/model"
	coremqtt "github.com/kilianp07/vending/core/mqtt"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// Command is one command recorded by MockClient.
type Command struct {
	Shelf model.ShelfID
	Item  model.ItemRef
}

// MockClient is an in-memory transport used in tests and dry runs. Shelves
// listed in Replies answer every command with the configured payload.
type MockClient struct {
	mu        sync.Mutex
	commands  []Command
	handler   coremqtt.InboundHandler
	connected bool

	FailShelves map[model.ShelfID]bool
	Replies     map[model.ShelfID]string
}

// NewMockClient creates a connected MockClient.
func NewMockClient() *MockClient {
	return &MockClient{
		connected:   true,
		FailShelves: make(map[model.ShelfID]bool),
		Replies:     make(map[model.ShelfID]string),
	}
}

// SendCommand records the command or fails for shelves in FailShelves.
func (m *MockClient) SendCommand(shelf model.ShelfID, item model.ItemRef) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return coremqtt.ErrNotConnected
	}
	if m.FailShelves[shelf] {
		m.mu.Unlock()
		return fmt.Errorf("publish failed")
	}
	m.commands = append(m.commands, Command{Shelf: shelf, Item: item})
	reply, ok := m.Replies[shelf]
	h := m.handler
	m.mu.Unlock()
	if ok && h != nil {
		go h.HandleResponse(shelf, reply)
	}
	return nil
}

// Listen implements coremqtt.Transport.
func (m *MockClient) Listen(h coremqtt.InboundHandler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// Heartbeat simulates a heartbeat from each shelf.
func (m *MockClient) Heartbeat(shelves ...model.ShelfID) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h == nil {
		return
	}
	for _, s := range shelves {
		h.HandleHeartbeat(s)
	}
}

// Commands returns a copy of the recorded commands.
func (m *MockClient) Commands() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command(nil), m.commands...)
}

func (m *MockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Disconnect marks the client offline and notifies the handler.
func (m *MockClient) Disconnect() {
	m.mu.Lock()
	m.connected = false
	h := m.handler
	m.mu.Unlock()
	if h != nil {
		h.HandleDisconnect(fmt.Errorf("mock client disconnected"))
	}
}
