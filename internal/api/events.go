package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/capturecfg/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of resolution, validation, availability and live test events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"config-resolved":      events.ConfigResolvedEvent{},
		"backend-reassigned":   events.BackendReassignedEvent{},
		"validation-failed":    events.ValidationFailedEvent{},
		"availability-changed": events.AvailabilityChangedEvent{},
		"livetest-completed":   events.LiveTestCompletedEvent{},
		"capabilities-changed": events.CapabilitiesChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Buffered channel per connection; slow consumers drop events
		// rather than block the bus.
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.ConfigResolvedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.BackendReassignedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ValidationFailedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.AvailabilityChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.LiveTestCompletedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CapabilitiesChangedEvent](s.eventBus, eventCh),
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
