package mqtt

import "github.com/kilianp07/vending/core/model"

// Client publishes dispense commands to shelf controllers.
type Client interface {
	// SendCommand publishes "<itemId>,<quantity>" on the shelf command topic.
	// A returned error means the command never reached the broker.
	SendCommand(shelf model.ShelfID, item model.ItemRef) error
}

// InboundHandler receives the traffic shelf controllers publish.
type InboundHandler interface {
	HandleHeartbeat(shelf model.ShelfID)
	HandleResponse(shelf model.ShelfID, payload string)
	// HandleDisconnect is called when the broker connection is lost.
	HandleDisconnect(err error)
}

// Transport is a Client that also delivers inbound shelf traffic.
type Transport interface {
	Client
	// Listen routes heartbeats, responses and link loss to h.
	Listen(h InboundHandler)
	IsConnected() bool
	Disconnect()
}
