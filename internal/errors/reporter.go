package errors

import (
	"sync"
	"sync/atomic"
)

// Reporter receives errors built with Report(). The telemetry package installs
// one when error reporting is enabled.
type Reporter interface {
	ReportError(ee *EnhancedError)
}

var (
	reporterMu        sync.RWMutex
	reporter          Reporter
	hasActiveReporter atomic.Bool
)

// SetReporter installs the reporter. Passing nil disables reporting.
func SetReporter(r Reporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	reporter = r
	hasActiveReporter.Store(r != nil)
}

func reportError(ee *EnhancedError) {
	if !hasActiveReporter.Load() {
		return
	}

	reporterMu.RLock()
	r := reporter
	reporterMu.RUnlock()

	if r == nil || ee.IsReported() {
		return
	}
	r.ReportError(ee)
	ee.MarkReported()
}
