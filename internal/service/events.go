package service

import (
	"encoding/json"

	ws "constructlink/internal/websocket"
)

// WorkflowEvent is the payload broadcast to connected dashboards whenever a
// withdrawal moves through the workflow.
type WorkflowEvent struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// broadcastEvent pushes an event to the hub without blocking the request.
// Losing an event is acceptable; the durable record is the audit log.
func broadcastEvent(hub *ws.Hub, event string, data map[string]interface{}) {
	if hub == nil {
		return
	}
	payload, err := json.Marshal(WorkflowEvent{Event: event, Data: data})
	if err != nil {
		return
	}
	go func() {
		hub.Broadcast <- payload
	}()
}
