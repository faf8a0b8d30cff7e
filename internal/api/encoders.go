package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/capturecfg/internal/api/models"
	"github.com/smazurov/capturecfg/internal/encoders"
	"github.com/smazurov/capturecfg/internal/events"
	"github.com/smazurov/capturecfg/internal/metrics"
)

// availabilityToAPI converts an availability snapshot to its API
// representation, codecs in display order and hardware backends first.
func availabilityToAPI(avail *encoders.Availability) models.AvailabilityData {
	data := models.AvailabilityData{
		Recommended: string(avail.RecommendedCodec),
	}
	for _, codec := range avail.AvailableCodecs() {
		backends := avail.AvailableBackends(codec)
		apiBackends := make([]models.BackendData, len(backends))
		for i, b := range backends {
			apiBackends[i] = models.BackendData{
				ID:       string(b.ID),
				Name:     b.DisplayName,
				Hardware: b.Hardware,
			}
		}
		data.Codecs = append(data.Codecs, models.CodecAvailabilityData{
			Codec:    string(codec),
			Name:     codec.DisplayName(),
			Backends: apiBackends,
		})
	}
	return data
}

// registerEncoderRoutes registers encoder availability and live test endpoints.
func (s *Server) registerEncoderRoutes() {
	// Availability snapshot
	huma.Register(s.api, huma.Operation{
		OperationID: "list-encoders",
		Method:      http.MethodGet,
		Path:        "/api/encoders",
		Summary:     "List Encoders",
		Description: "List available codec and backend combinations from the last probe",
		Tags:        []string{"encoders"},
		Errors:      []int{400, 401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.AvailabilityResponse, error) {
		avail := s.manager.Availability()
		if avail == nil {
			return nil, huma.Error400BadRequest("Encoder availability unknown - run the encoder probe first")
		}

		return &models.AvailabilityResponse{
			Body: availabilityToAPI(avail),
		}, nil
	})

	// Re-probe
	huma.Register(s.api, huma.Operation{
		OperationID: "probe-encoders",
		Method:      http.MethodPost,
		Path:        "/api/encoders/probe",
		Summary:     "Probe Encoders",
		Description: "Probe the machine for encoder backends and push the fresh snapshot to all sessions",
		Tags:        []string{"encoders"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.AvailabilityResponse, error) {
		avail, err := s.probe.Availability(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("Encoder probe failed", err)
		}
		if s.availStore != nil {
			if err := s.availStore.Save(avail); err != nil {
				s.logger.Warn("Could not persist encoder availability", "error", err)
			}
		}
		s.manager.SetAvailability(avail)

		return &models.AvailabilityResponse{
			Body: availabilityToAPI(avail),
		}, nil
	})

	// Live encode test
	huma.Register(s.api, huma.Operation{
		OperationID: "run-live-test",
		Method:      http.MethodPost,
		Path:        "/api/devices/{device_id}/livetest",
		Summary:     "Run Live Encoder Test",
		Description: "Run a short real encode to check the chosen codec, backend and preset keep up with the source rate",
		Tags:        []string{"encoders"},
		Errors:      []int{400, 401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *DevicePathInput) (*models.LiveTestResponse, error) {
		sess, ok := s.manager.Get(input.DeviceID)
		if !ok {
			return nil, huma.Error404NotFound("No session for device " + input.DeviceID)
		}
		cfg, ok := sess.Config()
		if !ok {
			return nil, huma.Error404NotFound("No configuration resolved for device " + input.DeviceID)
		}
		if cfg.Passthrough {
			return nil, huma.Error400BadRequest("Passthrough configuration has no encoder to test")
		}

		result, err := s.probe.RunLiveTest(ctx, input.DeviceID, cfg.Codec, cfg.Backend,
			cfg.PresetLevel, cfg.SourceWidth, cfg.SourceHeight, cfg.SourceFPS)
		if err != nil {
			return nil, huma.Error500InternalServerError("Live test failed to run", err)
		}

		metrics.IncLiveTest(liveTestVerdict(result))
		if s.eventBus != nil {
			s.eventBus.Publish(events.LiveTestCompletedEvent{
				DeviceID:      input.DeviceID,
				Codec:         string(cfg.Codec),
				Backend:       string(cfg.Backend),
				PresetLevel:   cfg.PresetLevel,
				Success:       result.Success,
				Warning:       result.Warning,
				FramesSent:    result.FramesSent,
				FramesDropped: result.FramesDropped,
				Message:       result.Message,
				Timestamp:     time.Now().Format(time.RFC3339),
			})
		}

		return &models.LiveTestResponse{
			Body: models.LiveTestData{
				DeviceID:      input.DeviceID,
				Success:       result.Success,
				Warning:       result.Warning,
				FramesSent:    result.FramesSent,
				FramesDropped: result.FramesDropped,
				Message:       result.Message,
			},
		}, nil
	})
}

func liveTestVerdict(result *encoders.LiveTestResult) string {
	switch {
	case result.Success && result.Warning:
		return "warning"
	case result.Success:
		return "success"
	default:
		return "failure"
	}
}
