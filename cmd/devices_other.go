//go:build !linux

package cmd

import (
	"context"
	"errors"

	"github.com/smazurov/camsrc/internal/api/models"
	"github.com/smazurov/camsrc/internal/events"
)

// ErrNoHotplug is returned by WatchDevices on platforms without uevents.
var ErrNoHotplug = errors.New("device hotplug monitoring is only available on linux")

// ListDevices returns no devices outside linux.
func ListDevices() ([]models.DeviceInfo, error) {
	return []models.DeviceInfo{}, nil
}

// WatchDevices is unavailable outside linux.
func WatchDevices(context.Context, *events.Bus, string, func()) error {
	return ErrNoHotplug
}
