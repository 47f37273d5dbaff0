// Package v4l2cap implements the capturefw contract on top of a Video4Linux2
// capture node.
//
// The catalog is derived from VIDIOC_ENUM_FMT, VIDIOC_ENUM_FRAMESIZES and
// VIDIOC_ENUM_FRAMEINTERVALS: one native format per (pixel format, size),
// advertising the highest integral frame rate. Writing the format index
// applies VIDIOC_S_FMT and writing the frame rate applies VIDIOC_S_PARM.
// Once the stream is started a producer goroutine copies every dequeued
// buffer into a sample and requeues the driver buffer immediately.
package v4l2cap
