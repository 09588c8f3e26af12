package vending

import "errors"

var (
	// ErrInvalidOrder is returned when no item of an order maps to a shelf.
	ErrInvalidOrder = errors.New("no valid items to process")
	// ErrQueueFull is returned when the admission queue is at capacity.
	ErrQueueFull = errors.New("order queue full")
	// ErrEngineClosed is returned once the engine has stopped.
	ErrEngineClosed = errors.New("dispense engine closed")
)
