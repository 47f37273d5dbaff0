package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camsrc/internal/events"
)

// registerSSERoutes streams element events to EventSource clients.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Element errors, state changes, format selection, stream status and device hotplug",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"element-error":   events.ElementErrorEvent{},
		"state-changed":   events.StateChangedEvent{},
		"format-selected": events.FormatSelectedEvent{},
		"stream-status":   events.StreamStatusEvent{},
		"latency":         events.LatencyEvent{},
		"device":          events.DeviceEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.ForwardToChannel[events.ElementErrorEvent](s.eventBus, eventCh),
			events.ForwardToChannel[events.StateChangedEvent](s.eventBus, eventCh),
			events.ForwardToChannel[events.FormatSelectedEvent](s.eventBus, eventCh),
			events.ForwardToChannel[events.StreamStatusEvent](s.eventBus, eventCh),
			events.ForwardToChannel[events.LatencyEvent](s.eventBus, eventCh),
			events.ForwardToChannel[events.DeviceEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
