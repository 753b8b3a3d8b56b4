package domain

import "errors"

var (
	ErrUnknownStream      = errors.New("unknown stream")
	ErrChannelNotOpen     = errors.New("channel is not open")
	ErrSendBufferFull     = errors.New("channel send buffer full")
	ErrTogglePending      = errors.New("live feed toggle already pending")
	ErrNoActiveOrder      = errors.New("no active order")
	ErrNotificationAbsent = errors.New("notification not found")
	ErrLoopStopped        = errors.New("event loop stopped")
)
