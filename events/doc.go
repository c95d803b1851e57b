// Package events fans script-originated events out to native listeners.
//
// The router keeps an identity-deduplicated listener set: adding the same
// listener instance twice is reported but not inserted again, and removing
// a listener that was never added is a no-op. Add and Remove report
// first/last transitions so the owner can lazily start and stop upstream
// event production.
//
// Dispatch invokes every listener with the event in registration order; a
// listener that panics is logged and skipped, never allowed to starve the
// remaining listeners or unwind into the delivery goroutine. Registration,
// removal, and dispatch are all safe under concurrent invocation.
package events
