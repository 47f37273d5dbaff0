//go:build linux

package cmd

import (
	"context"
	"time"

	"github.com/smazurov/camsrc/internal/api/models"
	"github.com/smazurov/camsrc/internal/events"
	"github.com/smazurov/camsrc/pkg/linuxav/hotplug"
	"github.com/smazurov/camsrc/pkg/linuxav/v4l2"
)

// ListDevices returns the V4L2 capture nodes present on the host.
func ListDevices() ([]models.DeviceInfo, error) {
	found, err := v4l2.FindDevices()
	if err != nil {
		return nil, err
	}
	devices := make([]models.DeviceInfo, 0, len(found))
	for _, d := range found {
		devices = append(devices, models.DeviceInfo{
			DevicePath: d.DevicePath,
			DeviceName: d.DeviceName,
			DeviceID:   d.DeviceID,
			Caps:       d.Caps,
		})
	}
	return devices, nil
}

// WatchDevices publishes a DeviceEvent for every video4linux node added or
// removed until ctx is done. onRemove runs when the node behind device goes
// away.
func WatchDevices(ctx context.Context, bus *events.Bus, device string, onRemove func()) error {
	mon, err := hotplug.NewMonitor(hotplug.SubsystemVideo4Linux)
	if err != nil {
		return err
	}
	defer mon.Close()

	// Stable IDs no longer resolve once the node is gone.
	active, _ := v4l2.ResolveDevice(device)

	return mon.Run(ctx, func(ev hotplug.Event) {
		if ev.Action != hotplug.ActionAdd && ev.Action != hotplug.ActionRemove {
			return
		}
		node := ev.Node()
		if node == "" {
			return
		}
		isActive := active != "" && node == active
		bus.Publish(events.DeviceEvent{
			Action:    ev.Action,
			Node:      node,
			Active:    isActive,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		if isActive && ev.Action == hotplug.ActionRemove && onRemove != nil {
			onRemove()
		}
	})
}
