package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/capturecfg/internal/api/models"
)

// DevicePathInput is the path parameter shared by per-device endpoints.
type DevicePathInput struct {
	DeviceID string `path:"device_id" example:"cam0" doc:"Stable device identifier"`
}

// registerDeviceRoutes registers session lifecycle and capability endpoints.
func (s *Server) registerDeviceRoutes() {
	// List open sessions
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Device Sessions",
		Description: "List all devices with an open configuration session",
		Tags:        []string{"devices"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.DeviceListResponse, error) {
		ids := s.manager.Devices()
		devices := make([]models.DeviceData, 0, len(ids))
		for _, id := range ids {
			sess, ok := s.manager.Get(id)
			if !ok {
				continue
			}
			devices = append(devices, s.sessionToAPIDevice(sess))
		}

		return &models.DeviceListResponse{
			Body: models.DeviceListData{
				Devices: devices,
				Count:   len(devices),
			},
		}, nil
	})

	// Open a session
	huma.Register(s.api, huma.Operation{
		OperationID: "open-device",
		Method:      http.MethodPost,
		Path:        "/api/devices/{device_id}/open",
		Summary:     "Open Device Session",
		Description: "Open a configuration session for a device, adopting any persisted configuration",
		Tags:        []string{"devices"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *DevicePathInput) (*models.DeviceResponse, error) {
		sess, err := s.manager.Open(ctx, input.DeviceID)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to open device session", err)
		}

		return &models.DeviceResponse{
			Body: s.sessionToAPIDevice(sess),
		}, nil
	})

	// Close a session
	huma.Register(s.api, huma.Operation{
		OperationID: "close-device",
		Method:      http.MethodDelete,
		Path:        "/api/devices/{device_id}",
		Summary:     "Close Device Session",
		Description: "Discard a device's configuration session",
		Tags:        []string{"devices"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *DevicePathInput) (*struct{}, error) {
		s.manager.Close(input.DeviceID)
		return &struct{}{}, nil
	})

	// Capability matrix
	huma.Register(s.api, huma.Operation{
		OperationID: "get-device-capabilities",
		Method:      http.MethodGet,
		Path:        "/api/devices/{device_id}/capabilities",
		Summary:     "Get Device Capabilities",
		Description: "Get the capability matrix the session is resolving against",
		Tags:        []string{"devices"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *DevicePathInput) (*models.CapabilitiesResponse, error) {
		sess, ok := s.manager.Get(input.DeviceID)
		if !ok {
			return nil, huma.Error404NotFound("No session for device " + input.DeviceID)
		}

		idx := sess.Index()
		var apiFormats []models.CapabilityFormat
		if idx != nil {
			for _, name := range idx.Formats() {
				entries := idx.EntriesFor(name)
				modes := make([]models.CapabilityMode, len(entries))
				for i, e := range entries {
					modes[i] = models.CapabilityMode{
						Width:      e.Width,
						Height:     e.Height,
						Framerates: e.Framerates,
					}
				}
				apiFormats = append(apiFormats, models.CapabilityFormat{
					Name:  name,
					Modes: modes,
				})
			}
		}

		return &models.CapabilitiesResponse{
			Body: models.CapabilitiesData{
				DeviceID: input.DeviceID,
				Formats:  apiFormats,
			},
		}, nil
	})

	// Refresh capabilities
	huma.Register(s.api, huma.Operation{
		OperationID: "refresh-device-capabilities",
		Method:      http.MethodPost,
		Path:        "/api/devices/{device_id}/refresh",
		Summary:     "Refresh Device Capabilities",
		Description: "Re-query the capability source and re-resolve the configuration against the fresh snapshot",
		Tags:        []string{"devices"},
		Errors:      []int{401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *DevicePathInput) (*models.DeviceResponse, error) {
		sess, ok := s.manager.Get(input.DeviceID)
		if !ok {
			return nil, huma.Error404NotFound("No session for device " + input.DeviceID)
		}
		if err := sess.RefreshCapabilities(ctx); err != nil {
			return nil, huma.Error500InternalServerError("Failed to refresh capabilities", err)
		}

		return &models.DeviceResponse{
			Body: s.sessionToAPIDevice(sess),
		}, nil
	})
}
