package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/capturecfg/internal/api/models"
	"github.com/smazurov/capturecfg/internal/encoders"
	"github.com/smazurov/capturecfg/internal/formats"
	"github.com/smazurov/capturecfg/internal/resolve"
)

// EditRequest combines the device path with a single-field edit body.
type EditRequest struct {
	DevicePathInput
	Body models.EditRequestData
}

// sessionToAPIDevice converts a session to its API representation.
func (s *Server) sessionToAPIDevice(sess *resolve.Session) models.DeviceData {
	_, hasConfig := sess.Config()
	return models.DeviceData{
		DeviceID:   sess.DeviceID(),
		Generation: sess.Generation(),
		HasConfig:  hasConfig,
	}
}

// configToAPI converts a resolved configuration to its API representation.
func configToAPI(cfg resolve.Config) models.ConfigData {
	return models.ConfigData{
		SourceFormat:      cfg.SourceFormat,
		SourceWidth:       cfg.SourceWidth,
		SourceHeight:      cfg.SourceHeight,
		SourceFPS:         cfg.SourceFPS,
		Passthrough:       cfg.Passthrough,
		PassthroughLocked: formats.IsRaw(cfg.SourceFormat),
		Codec:             string(cfg.Codec),
		Backend:           string(cfg.Backend),
		PresetLevel:       cfg.PresetLevel,
		PresetLabel:       encoders.PresetLabel(cfg.PresetLevel),
		EffortLevel:       cfg.EffortLevel,
		BitDepth:          cfg.BitDepth,
		TargetWidth:       cfg.TargetWidth,
		TargetHeight:      cfg.TargetHeight,
		TargetFPS:         cfg.TargetFPS,
		CustomBitrateKbps: cfg.CustomBitrateKbps,
	}
}

// configEnvelope wraps a configuration with its session identity.
func (s *Server) configEnvelope(sess *resolve.Session, cfg resolve.Config) models.ConfigEnvelope {
	return models.ConfigEnvelope{
		DeviceID:   sess.DeviceID(),
		Generation: sess.Generation(),
		Config:     configToAPI(cfg),
	}
}

// applyEdit applies a single-field edit to the session and returns the
// re-resolved configuration. The engine cascades everything downstream
// of the edited field.
func applyEdit(ctx context.Context, sess *resolve.Session, edit models.EditRequestData) (resolve.Config, error) {
	switch {
	case edit.Width != nil || edit.Height != nil:
		if edit.Width == nil || edit.Height == nil {
			return resolve.Config{}, huma.Error400BadRequest("width and height must be set together")
		}
		return sess.SetResolution(*edit.Width, *edit.Height), nil
	case edit.FPS != nil:
		return sess.SetFPS(*edit.FPS), nil
	case edit.Format != nil:
		return sess.SetFormat(*edit.Format), nil
	case edit.Passthrough != nil:
		return sess.SetPassthrough(*edit.Passthrough), nil
	case edit.Codec != nil:
		return sess.SetCodec(encoders.Codec(*edit.Codec)), nil
	case edit.Backend != nil:
		return sess.SetBackend(encoders.Backend(*edit.Backend)), nil
	case edit.PresetLevel != nil:
		return sess.SetPresetLevel(*edit.PresetLevel), nil
	case edit.EffortLevel != nil:
		return sess.SetEffortLevel(*edit.EffortLevel), nil
	case edit.BitDepth != nil:
		return sess.SetBitDepth(*edit.BitDepth), nil
	case edit.TargetWidth != nil || edit.TargetHeight != nil:
		if edit.TargetWidth == nil || edit.TargetHeight == nil {
			return resolve.Config{}, huma.Error400BadRequest("target_width and target_height must be set together")
		}
		return sess.SetTargetResolution(*edit.TargetWidth, *edit.TargetHeight), nil
	case edit.TargetFPS != nil:
		return sess.SetTargetFPS(*edit.TargetFPS), nil
	case edit.CustomBitrateKbps != nil:
		cfg, err := sess.SetCustomBitrate(ctx, *edit.CustomBitrateKbps)
		if err != nil {
			return resolve.Config{}, huma.Error500InternalServerError("Failed to apply custom bitrate", err)
		}
		return cfg, nil
	default:
		return resolve.Config{}, huma.Error400BadRequest("edit request carries no field")
	}
}

// registerConfigRoutes registers configuration resolution endpoints.
func (s *Server) registerConfigRoutes() {
	// Current configuration
	huma.Register(s.api, huma.Operation{
		OperationID: "get-device-config",
		Method:      http.MethodGet,
		Path:        "/api/devices/{device_id}/config",
		Summary:     "Get Device Configuration",
		Description: "Get the currently resolved configuration for a device",
		Tags:        []string{"config"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *DevicePathInput) (*models.ConfigResponse, error) {
		sess, ok := s.manager.Get(input.DeviceID)
		if !ok {
			return nil, huma.Error404NotFound("No session for device " + input.DeviceID)
		}
		cfg, ok := sess.Config()
		if !ok {
			return nil, huma.Error404NotFound("No configuration resolved for device " + input.DeviceID)
		}

		return &models.ConfigResponse{
			Body: s.configEnvelope(sess, cfg),
		}, nil
	})

	// Single-field edit
	huma.Register(s.api, huma.Operation{
		OperationID: "edit-device-config",
		Method:      http.MethodPatch,
		Path:        "/api/devices/{device_id}/config",
		Summary:     "Edit Device Configuration",
		Description: "Apply a single field edit and re-resolve everything downstream of it",
		Tags:        []string{"config"},
		Errors:      []int{400, 401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *EditRequest) (*models.ConfigResponse, error) {
		sess, ok := s.manager.Get(input.DeviceID)
		if !ok {
			return nil, huma.Error404NotFound("No session for device " + input.DeviceID)
		}
		if _, ok := sess.Config(); !ok {
			return nil, huma.Error404NotFound("No configuration resolved for device " + input.DeviceID)
		}

		cfg, err := applyEdit(ctx, sess, input.Body)
		if err != nil {
			return nil, err
		}

		return &models.ConfigResponse{
			Body: s.configEnvelope(sess, cfg),
		}, nil
	})

	// Reset to computed default
	huma.Register(s.api, huma.Operation{
		OperationID: "reset-device-config",
		Method:      http.MethodPost,
		Path:        "/api/devices/{device_id}/config/default",
		Summary:     "Reset Device Configuration",
		Description: "Discard edits and recompute the default configuration from capabilities",
		Tags:        []string{"config"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *DevicePathInput) (*models.ConfigResponse, error) {
		sess, ok := s.manager.Get(input.DeviceID)
		if !ok {
			return nil, huma.Error404NotFound("No session for device " + input.DeviceID)
		}
		cfg := sess.Adopt(resolve.Config{})

		return &models.ConfigResponse{
			Body: s.configEnvelope(sess, cfg),
		}, nil
	})

	// Validate and persist
	huma.Register(s.api, huma.Operation{
		OperationID: "commit-device-config",
		Method:      http.MethodPost,
		Path:        "/api/devices/{device_id}/config/commit",
		Summary:     "Commit Device Configuration",
		Description: "Validate the configuration against the live device and persist it on success",
		Tags:        []string{"config"},
		Errors:      []int{401, 404, 422, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *DevicePathInput) (*models.ConfigResponse, error) {
		cfg, err := s.manager.Commit(ctx, input.DeviceID)
		if err != nil {
			return nil, s.mapCommitError(input.DeviceID, err)
		}
		sess, ok := s.manager.Get(input.DeviceID)
		if !ok {
			return nil, huma.Error404NotFound("No session for device " + input.DeviceID)
		}

		return &models.ConfigResponse{
			Body: s.configEnvelope(sess, cfg),
		}, nil
	})

	// Bitrate suggestions
	huma.Register(s.api, huma.Operation{
		OperationID: "get-device-bitrates",
		Method:      http.MethodGet,
		Path:        "/api/devices/{device_id}/config/bitrates",
		Summary:     "Get Bitrate Suggestions",
		Description: "Get per-preset bitrate suggestions for the current codec, backend and target geometry",
		Tags:        []string{"config"},
		Errors:      []int{401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *DevicePathInput) (*models.BitrateSuggestionsResponse, error) {
		sess, ok := s.manager.Get(input.DeviceID)
		if !ok {
			return nil, huma.Error404NotFound("No session for device " + input.DeviceID)
		}
		suggestions, err := sess.Suggestions(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to probe bitrates", err)
		}

		apiSuggestions := make([]models.BitrateSuggestion, 0, encoders.PresetLevels)
		if !suggestions.Empty() {
			for level := uint8(encoders.MinPreset); level <= encoders.MaxPreset; level++ {
				apiSuggestions = append(apiSuggestions, models.BitrateSuggestion{
					PresetLevel: level,
					PresetLabel: encoders.PresetLabel(level),
					Kbps:        suggestions.ForLevel(level),
				})
			}
		}

		return &models.BitrateSuggestionsResponse{
			Body: models.BitrateSuggestionsData{
				DeviceID:    input.DeviceID,
				Suggestions: apiSuggestions,
			},
		}, nil
	})
}

// mapCommitError maps commit failures to HTTP status codes. A rejected
// mode is a client-resolvable condition, not a server fault.
func (s *Server) mapCommitError(deviceID string, err error) error {
	var verr *resolve.ValidationError
	switch {
	case errors.As(err, &verr):
		return huma.Error422UnprocessableEntity("Device rejected mode "+verr.Tuple(), err)
	case errors.Is(err, resolve.ErrNoSession):
		return huma.Error404NotFound("No session for device " + deviceID)
	case errors.Is(err, resolve.ErrNothingUsable):
		return huma.Error422UnprocessableEntity("No configuration to commit", err)
	default:
		return huma.Error500InternalServerError("Commit failed", err)
	}
}
