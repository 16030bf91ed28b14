// Package procsignal is the signal dispatcher of spec.md §4 (Component
// Design): a platform-portable façade over pausing, resuming, and
// killing a child OS process.
package procsignal

import "errors"

// ErrUnsupported is returned by Pause/Resume on platforms without
// job-control signals (Windows). Kill is always supported.
var ErrUnsupported = errors.New("pause/resume not supported on this platform")
