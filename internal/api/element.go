package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camsrc/internal/api/models"
	"github.com/smazurov/camsrc/internal/camsrc"
)

func (s *Server) registerElementRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-element",
		Method:      http.MethodGet,
		Path:        "/api/element",
		Summary:     "Element Status",
		Description: "Current state, session and selected format of the source element",
		Tags:        []string{"element"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.ElementStatusResponse, error) {
		return &models.ElementStatusResponse{Body: statusData(s.element.Status())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-element-state",
		Method:      http.MethodPut,
		Path:        "/api/element/state",
		Summary:     "Change State",
		Description: "Step the element toward the target state: null opens nothing, ready holds the device, streaming delivers buffers",
		Tags:        []string{"element"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 409, 500, 503},
	}, func(_ context.Context, input *models.SetStateRequest) (*models.ElementStatusResponse, error) {
		target, err := camsrc.ParseState(input.Body.State)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid state", err)
		}
		if err := s.element.SetState(target); err != nil {
			return nil, stateError(err)
		}
		return &models.ElementStatusResponse{Body: statusData(s.element.Status())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-element-caps",
		Method:      http.MethodGet,
		Path:        "/api/element/caps",
		Summary:     "Supported Formats",
		Description: "Formats the open device offers. Without a device only the template is known.",
		Tags:        []string{"element"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.CapsResponse, error) {
		data := models.CapsData{
			Template: camsrc.TemplateCaps().String(),
			Formats:  []models.FormatData{},
		}
		if caps := s.element.Caps(); caps != nil {
			data.Caps = caps.String()
		}
		for _, f := range s.element.Formats() {
			data.Formats = append(data.Formats, formatData(f))
		}
		return &models.CapsResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "negotiate-element",
		Method:      http.MethodPost,
		Path:        "/api/element/negotiate",
		Summary:     "Select Format",
		Description: "Commit fixed caps to the device. The element must be at least ready.",
		Tags:        []string{"element"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 409, 422, 500},
	}, func(_ context.Context, input *models.NegotiateRequest) (*models.ElementStatusResponse, error) {
		caps, err := camsrc.ParseCaps(input.Body.Caps)
		if err != nil {
			return nil, huma.Error400BadRequest("malformed caps", err)
		}
		if err := s.element.Negotiate(caps); err != nil {
			return nil, negotiateError(err)
		}
		return &models.ElementStatusResponse{Body: statusData(s.element.Status())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-element-latency",
		Method:      http.MethodGet,
		Path:        "/api/element/latency",
		Summary:     "Latency",
		Description: "Live latency of the element: one frame once a format is selected",
		Tags:        []string{"element"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.LatencyResponse, error) {
		data := models.LatencyData{Live: true}
		if minLatency, maxLatency, ok := s.element.Latency(); ok {
			data.Determined = true
			data.Min = minLatency.String()
			data.Max = maxLatency.String()
		}
		return &models.LatencyResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "unlock-element",
		Method:      http.MethodPost,
		Path:        "/api/element/unlock",
		Summary:     "Unlock",
		Description: "Wake any blocked pull and make pulls return flushing until the next start",
		Tags:        []string{"element"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.MessageResponse, error) {
		s.element.Unlock()
		s.element.UnlockStop()
		resp := &models.MessageResponse{}
		resp.Body.Message = "unlocked"
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-element-properties",
		Method:      http.MethodGet,
		Path:        "/api/element/properties",
		Summary:     "Properties",
		Tags:        []string{"element"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.PropertiesResponse, error) {
		return &models.PropertiesResponse{Body: s.properties()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-element-properties",
		Method:      http.MethodPatch,
		Path:        "/api/element/properties",
		Summary:     "Update Properties",
		Description: "Set any subset of element properties",
		Tags:        []string{"element"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 409},
	}, func(_ context.Context, input *models.PropertiesRequest) (*models.PropertiesResponse, error) {
		b := input.Body
		updates := []struct {
			name  string
			set   bool
			value any
		}{
			{camsrc.PropertyDoStats, b.DoStats != nil, deref(b.DoStats)},
			{camsrc.PropertyRollbackOnFailure, b.RollbackOnFailure != nil, deref(b.RollbackOnFailure)},
			{camsrc.PropertyDevice, b.Device != nil, deref(b.Device)},
		}
		for _, u := range updates {
			if !u.set {
				continue
			}
			if err := s.element.SetProperty(u.name, u.value); err != nil {
				if errors.Is(err, camsrc.ErrReadOnlyProperty) {
					return nil, huma.Error409Conflict(u.name+" cannot change while the device is open", err)
				}
				return nil, huma.Error400BadRequest("invalid "+u.name, err)
			}
		}
		return &models.PropertiesResponse{Body: s.properties()}, nil
	})
}

func (s *Server) properties() models.PropertiesData {
	var data models.PropertiesData
	if v, err := s.element.Property(camsrc.PropertyDoStats); err == nil {
		data.DoStats, _ = v.(bool)
	}
	if v, err := s.element.Property(camsrc.PropertyRollbackOnFailure); err == nil {
		data.RollbackOnFailure, _ = v.(bool)
	}
	if v, err := s.element.Property(camsrc.PropertyDevice); err == nil {
		data.Device, _ = v.(string)
	}
	return data
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func stateError(err error) error {
	var apiErr *camsrc.APIError
	switch {
	case errors.Is(err, camsrc.ErrResourceBusy):
		return huma.Error409Conflict("device is already in use", err)
	case errors.Is(err, camsrc.ErrInvalidTransition):
		return huma.Error400BadRequest("invalid state", err)
	case errors.As(err, &apiErr):
		return huma.Error503ServiceUnavailable("capture framework unavailable", err)
	default:
		return huma.Error500InternalServerError("state change failed", err)
	}
}

func negotiateError(err error) error {
	switch {
	case errors.Is(err, camsrc.ErrNoDevice):
		return huma.Error409Conflict("no device is open", err)
	case errors.Is(err, camsrc.ErrInvalidFormat):
		return huma.Error400BadRequest("caps do not describe a raw video format", err)
	case errors.Is(err, camsrc.ErrFormatNotSupported):
		return huma.Error422UnprocessableEntity("format not supported by the device", err)
	default:
		return huma.Error500InternalServerError("failed to select format", err)
	}
}

func formatData(f camsrc.Format) models.FormatData {
	return models.FormatData{
		Index:     f.Index,
		Format:    f.Layout.String(),
		Width:     f.Width,
		Height:    f.Height,
		FrameRate: f.FrameRate.String(),
		Caps:      f.Structure().String(),
	}
}

func statusData(st camsrc.Status) models.ElementStatusData {
	data := models.ElementStatusData{
		Name:      st.Name,
		State:     st.State.String(),
		Device:    st.Device,
		SessionID: st.SessionID,
		Running:   st.Running,
		Pending:   st.Pending,
		Offset:    st.Offset,
	}
	if st.Selected != nil {
		f := formatData(*st.Selected)
		data.Selected = &f
	}
	if st.FrameDuration != camsrc.ClockTimeNone {
		data.FrameDuration = st.FrameDuration.String()
	}
	return data
}
