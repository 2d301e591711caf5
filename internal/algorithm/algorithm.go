// Package algorithm defines the capability interface ISP control algorithms
// implement, and an explicit registry the host populates at program start.
// There are no registration side effects at package init time: the host
// decides which algorithms exist.
package algorithm

import (
	"github.com/corvid-imaging/afengine/internal/config"
	"github.com/corvid-imaging/afengine/internal/metadata"
	"github.com/corvid-imaging/afengine/internal/stats"
)

// Algorithm is one per-frame ISP control algorithm. The host pipeline calls
// Prepare then Process for each frame, serially; command surfaces (if any)
// are algorithm-specific.
type Algorithm interface {
	// Name identifies the algorithm in the registry.
	Name() string

	// Read applies a tuning document. Missing keys keep defaults.
	Read(t *config.Tuning) error

	// Initialise finalises tuning after Read, before the first frame.
	Initialise()

	// SwitchMode adopts a new sensor readout geometry.
	SwitchMode(mode stats.CameraMode, md *metadata.Metadata)

	// Prepare runs at frame start with per-frame metadata.
	Prepare(md *metadata.Metadata)

	// Process runs after the ISP with the frame's statistics.
	Process(st *stats.Statistics, md *metadata.Metadata)
}
