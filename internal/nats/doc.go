// Package nats mirrors element events onto NATS subjects and accepts remote
// control requests for a running element.
//
// # Subject Hierarchy
//
//	camsrc.elements.{element}.state    # StateChangedEvent
//	camsrc.elements.{element}.errors   # ElementErrorEvent
//	camsrc.elements.{element}.format   # FormatSelectedEvent
//	camsrc.elements.{element}.stream   # StreamStatusEvent
//	camsrc.devices                     # DeviceEvent
//	camsrc.control.{element}           # ControlMessage request, ControlReply response
//
// Event payloads are the JSON encoding of the internal/events types. Control
// uses core NATS request/reply; there is no JetStream.
//
// # Debugging with nats CLI
//
// Watch everything an element reports:
//
//	nats sub "camsrc.elements.camsrc0.>"
//
// Cancel a blocked pull:
//
//	nats req camsrc.control.camsrc0 '{"action":"unlock","reason":"debug"}'
//
// Close the device:
//
//	nats req camsrc.control.camsrc0 '{"action":"state","state":"null"}'
package nats
