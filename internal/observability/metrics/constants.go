// Package metrics provides the Prometheus collectors of the trigger engine.
package metrics

import "time"

// Trigger kinds used as the "trigger" label on fire counters.
const (
	TriggerManual = "manual"
	TriggerSource = "source"
)

// Source failure stages used as the "stage" label.
const (
	StageInit    = "init"
	StageCapture = "capture"
)

// Retirement reasons used as the "reason" label.
const (
	ReasonDead     = "dead"
	ReasonVanished = "vanished"
	ReasonShutdown = "shutdown"
)

// ShutdownTimeout bounds graceful shutdown of the metrics HTTP server.
const ShutdownTimeout = 5 * time.Second
