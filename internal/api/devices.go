package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camsrc/internal/api/models"
)

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "Devices",
		Description: "Capture nodes on the host and the registry slots elements have checked out",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.DevicesResponse, error) {
		data := models.DevicesData{
			Devices: []models.DeviceInfo{},
			Slots:   []models.SlotData{},
		}

		if s.devices != nil {
			found, err := s.devices()
			if err != nil {
				return nil, huma.Error500InternalServerError("device enumeration failed", err)
			}
			data.Devices = append(data.Devices, found...)
		}

		for _, slot := range s.registry.Slots() {
			sd := models.SlotData{
				ID:        slot.ID,
				State:     string(slot.State),
				Owner:     slot.Owner,
				Checkouts: slot.Checkouts,
			}
			if !slot.Since.IsZero() {
				sd.Since = slot.Since.UTC().Format(time.RFC3339)
			}
			data.Slots = append(data.Slots, sd)
		}

		return &models.DevicesResponse{Body: data}, nil
	})
}
