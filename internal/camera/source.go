// Package camera provides the frame acquisition sources a focus run can
// sample from: live HTTP snapshot cameras, recorded frames in Azure blob
// storage, and a synthetic defocus camera for rigs without hardware.
package camera

import (
	"context"
	"image"
)

// Source acquires one raw frame per call. Implementations must be safe
// for sequential use from a single focus run; a capture failure aborts
// the run, so sources should not paper over hardware faults.
type Source interface {
	// Name identifies the source in logs, events and rig configs.
	Name() string
	// Capture blocks until a fresh frame is available and returns it.
	Capture(ctx context.Context) (image.Image, error)
}
