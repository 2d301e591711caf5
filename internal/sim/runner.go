package sim

import (
	"time"

	"github.com/corvid-imaging/afengine/internal/af"
	"github.com/corvid-imaging/afengine/internal/metadata"
	"github.com/corvid-imaging/afengine/internal/stats"
	"github.com/corvid-imaging/afengine/internal/timeutil"
)

// FrameSample records one simulated frame.
type FrameSample struct {
	Frame     int
	Lens      float64 // smoothed lens position in dioptres
	HwSetting int     // hardware units, valid only when HwValid
	HwValid   bool
	Contrast  float64 // contrast latched for this frame
	State     af.State
	Pause     af.PauseState
}

// Result is a completed simulation run.
type Result struct {
	Samples []FrameSample
	Final   af.Status
}

// Runner steps the controller through simulated frames.
type Runner struct {
	Alg   *af.Af
	Scene *Scene
	Clock timeutil.Clock

	// FrameInterval paces the loop; zero runs flat out.
	FrameInterval time.Duration

	// OnFrame, if set, runs before each frame and may mutate the scene
	// to script lighting or subject changes.
	OnFrame func(frame int, sc *Scene)

	// ApplyLens, if set, receives each valid hardware lens setting, in
	// the same order the controller emits them.
	ApplyLens func(setting int) error
}

// Run executes the given number of frames and returns the trace.
func (r *Runner) Run(frames int) (*Result, error) {
	res := &Result{Samples: make([]FrameSample, 0, frames)}

	for frame := 0; frame < frames; frame++ {
		if r.OnFrame != nil {
			r.OnFrame(frame, r.Scene)
		}

		lens, _ := r.Alg.GetLensPosition()

		md := metadata.New()
		if pdaf := r.Scene.Pdaf(lens); pdaf != nil {
			md.Set(af.KeyPdafRegions, pdaf)
		}
		md.Set(af.KeyAgcStatus, stats.AgcPrepareStatus{Locked: r.Scene.AgcLocked})

		r.Alg.Prepare(md)

		status, _ := metadata.Get[af.Status](md, af.KeyStatus)
		if status.LensSetting.Valid && r.ApplyLens != nil {
			if err := r.ApplyLens(status.LensSetting.Value); err != nil {
				return nil, err
			}
		}

		// The exposure that produced this frame's statistics happened
		// at the position the lens has now settled to.
		lens, _ = r.Alg.GetLensPosition()
		st := &stats.Statistics{
			FocusRegions: r.Scene.Focus(lens),
			AwbRegions:   r.Scene.Awb(),
		}
		r.Alg.Process(st, md)

		sample := FrameSample{
			Frame:     frame,
			Lens:      lens,
			HwSetting: status.LensSetting.Value,
			HwValid:   status.LensSetting.Valid,
			State:     status.State,
			Pause:     status.PauseState,
		}
		if st.FocusRegions.NumRegions() > 0 {
			sample.Contrast = float64(st.FocusRegions.Get(0).Val.Val)
		}
		res.Samples = append(res.Samples, sample)
		res.Final = status

		if r.FrameInterval > 0 && r.Clock != nil {
			r.Clock.Sleep(r.FrameInterval)
		}
	}

	return res, nil
}
