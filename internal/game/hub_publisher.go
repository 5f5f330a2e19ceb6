package game

import (
	"context"
	"fmt"

	ws "github.com/gokatarajesh/trivia-live/pkg/http/ws"
)

// HubPublisher delivers events straight into the local WebSocket hub.
type HubPublisher struct {
	hub *ws.Hub
}

// NewHubPublisher creates a publisher for a single-instance deployment.
func NewHubPublisher(hub *ws.Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

// Publish implements Publisher. Per-connection failures are logged by the hub.
func (p *HubPublisher) Publish(_ context.Context, sessionID string, evt Event) error {
	msg, err := EventMessage(evt)
	if err != nil {
		return err
	}
	p.hub.BroadcastToSession(sessionID, msg)
	return nil
}

// EventMessage wraps evt in the WebSocket envelope clients receive.
func EventMessage(evt Event) (ws.Message, error) {
	msg, err := ws.NewMessage(evt.Type, evt)
	if err != nil {
		return ws.Message{}, fmt.Errorf("marshal %s event: %w", evt.Type, err)
	}
	return msg, nil
}
