//go:build linux

// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) API for
// device enumeration, format queries and memory-mapped streaming capture.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Device Enumeration
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
// # Format Queries
//
//	formats, _ := v4l2.GetFormats("/dev/video0")
//	for _, f := range formats {
//	    resolutions, _ := v4l2.GetResolutions("/dev/video0", f.PixelFormat)
//	    for _, res := range resolutions {
//	        rates, _ := v4l2.GetFramerates("/dev/video0", f.PixelFormat, res.Width, res.Height)
//	    }
//	}
//
// # Streaming
//
//	c, err := v4l2.OpenCapture("/dev/video0")
//	pix, err := c.SetFormat(v4l2.PixFmtYUYV, 640, 480)
//	err = c.SetFrameInterval(1, 30)
//	err = c.Start(4)
//	for {
//	    if err := c.Wait(time.Second); err != nil { ... }
//	    frame, err := c.Dequeue()
//	    use(frame.Data[:frame.BytesUsed])
//	    c.Requeue(frame.Index)
//	}
package v4l2
