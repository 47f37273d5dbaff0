// Package models holds request and response bodies of the diagnostics API.
package models

import (
	"github.com/smazurov/camsrc/internal/logging"
	"github.com/smazurov/camsrc/internal/version"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionResponse struct {
	Body version.Info
}

// Element models
type FormatData struct {
	Index     int    `json:"index" example:"0" doc:"Position in the device format list"`
	Format    string `json:"format" example:"YUY2" doc:"Pixel layout"`
	Width     int    `json:"width" example:"640"`
	Height    int    `json:"height" example:"480"`
	FrameRate string `json:"framerate" example:"30/1" doc:"Frames per second as a fraction"`
	Caps      string `json:"caps" doc:"Media description of this format"`
}

type ElementStatusData struct {
	Name          string      `json:"name" example:"camsrc0"`
	State         string      `json:"state" example:"streaming" enum:"null,ready,streaming"`
	Device        string      `json:"device" example:"default" doc:"Device registry key"`
	SessionID     string      `json:"session_id,omitempty" doc:"Identifier of the open capture session"`
	Selected      *FormatData `json:"selected,omitempty" doc:"Format committed to the device"`
	FrameDuration string      `json:"frame_duration,omitempty" example:"33.333333ms"`
	Running       bool        `json:"running" doc:"Whether pulls may block waiting for samples"`
	Pending       bool        `json:"pending" doc:"Whether a sample was waiting after the last pull"`
	Offset        uint64      `json:"offset" doc:"Offset of the next buffer"`
}

type ElementStatusResponse struct {
	Body ElementStatusData
}

type SetStateRequest struct {
	Body struct {
		State string `json:"state" example:"ready" enum:"null,ready,streaming,playing" doc:"Target state"`
	}
}

type CapsData struct {
	Template string       `json:"template" doc:"Layouts the element can ever produce"`
	Caps     string       `json:"caps" doc:"Formats the open device offers, EMPTY when unknown"`
	Formats  []FormatData `json:"formats" doc:"Supported formats in device order"`
}

type CapsResponse struct {
	Body CapsData
}

type NegotiateRequest struct {
	Body struct {
		Caps string `json:"caps" example:"video/x-raw, format=YUY2, width=640, height=480, framerate=30/1" doc:"Fixed caps to select"`
	}
}

type LatencyData struct {
	Live       bool   `json:"live"`
	Determined bool   `json:"determined" doc:"False until a format has been selected"`
	Min        string `json:"min,omitempty" example:"33.333333ms"`
	Max        string `json:"max,omitempty" example:"33.333333ms"`
}

type LatencyResponse struct {
	Body LatencyData
}

type PropertiesData struct {
	DoStats           bool   `json:"do-stats"`
	RollbackOnFailure bool   `json:"rollback-on-failure"`
	Device            string `json:"device"`
}

type PropertiesResponse struct {
	Body PropertiesData
}

type PropertiesRequest struct {
	Body struct {
		DoStats           *bool   `json:"do-stats,omitempty"`
		RollbackOnFailure *bool   `json:"rollback-on-failure,omitempty"`
		Device            *string `json:"device,omitempty" doc:"Only writable while the element is in the null state"`
	}
}

type MessageResponse struct {
	Body struct {
		Message string `json:"message"`
	}
}

// Device models
type DeviceInfo struct {
	DevicePath string `json:"device_path" example:"/dev/video0"`
	DeviceName string `json:"device_name" example:"HD Pro Webcam C920"`
	DeviceID   string `json:"device_id" example:"usb-046d_HD_Pro_Webcam_C920-video-index0" doc:"Stable device identifier"`
	Caps       uint32 `json:"caps" doc:"V4L2 device capability bits"`
}

type SlotData struct {
	ID        string `json:"id" example:"default"`
	State     string `json:"state" example:"checked-out" enum:"free,checked-out"`
	Owner     string `json:"owner,omitempty" example:"camsrc0"`
	Since     string `json:"since,omitempty"`
	Checkouts int    `json:"checkouts"`
}

type DevicesData struct {
	Devices []DeviceInfo `json:"devices" doc:"Capture nodes present on the host"`
	Slots   []SlotData   `json:"slots" doc:"Registry slots and their owners"`
}

type DevicesResponse struct {
	Body DevicesData
}

// Log models
type LogsRequest struct {
	Limit int `query:"limit" default:"100" minimum:"0" maximum:"500" doc:"Number of most recent entries"`
}

type LogsResponse struct {
	Body struct {
		Entries []logging.Entry `json:"entries"`
	}
}
