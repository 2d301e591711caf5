// Command afsim drives the autofocus controller against a synthetic scene.
// It stands in for the camera pipeline: it feeds PDAF and CDAF statistics
// frame by frame, records the lens trajectory, and can persist the run and
// render charts for tuning work.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/corvid-imaging/afengine/internal/af"
	"github.com/corvid-imaging/afengine/internal/algorithm"
	"github.com/corvid-imaging/afengine/internal/config"
	"github.com/corvid-imaging/afengine/internal/metadata"
	"github.com/corvid-imaging/afengine/internal/scanlog"
	"github.com/corvid-imaging/afengine/internal/sim"
	"github.com/corvid-imaging/afengine/internal/stats"
	"github.com/corvid-imaging/afengine/internal/timeutil"
)

func main() {
	var (
		tuningPath = flag.String("tuning", "", "path to a JSON tuning document (defaults apply if empty)")
		frames     = flag.Int("frames", 120, "number of frames to simulate")
		trueFocus  = flag.Float64("true-focus", 3.0, "subject distance in dioptres")
		modeName   = flag.String("mode", "auto", "AF mode: manual, auto or continuous")
		speedName  = flag.String("speed", "normal", "AF speed: normal or fast")
		rangeName  = flag.String("range", "normal", "AF range: normal, macro or full")
		manualPos  = flag.Float64("manual-pos", 1.0, "lens position for manual mode, in dioptres")
		pdaf       = flag.Bool("pdaf", true, "scene provides PDAF statistics")
		fps        = flag.Float64("fps", 0, "pace frames at this rate (0 = flat out)")
		dbPath     = flag.String("db", "", "record the run into this SQLite scan log")
		outDir     = flag.String("out", "", "write HTML and PNG charts into this directory")
		lensPort   = flag.String("lens-port", "", "serial port of a VCM driver board to mirror lens settings to")
	)
	flag.Parse()

	if err := run(*tuningPath, *frames, *trueFocus, *modeName, *speedName, *rangeName,
		*manualPos, *pdaf, *fps, *dbPath, *outDir, *lensPort); err != nil {
		log.Fatalf("afsim: %v", err)
	}
}

func run(tuningPath string, frames int, trueFocus float64,
	modeName, speedName, rangeName string, manualPos float64,
	pdaf bool, fps float64, dbPath, outDir, lensPort string) error {

	mode, err := parseMode(modeName)
	if err != nil {
		return err
	}
	speed, err := parseSpeed(speedName)
	if err != nil {
		return err
	}
	focusRange, err := parseRange(rangeName)
	if err != nil {
		return err
	}

	registry := algorithm.NewRegistry()
	registry.Register(af.Name, func() algorithm.Algorithm { return af.New() })

	alg, ok := registry.Create(af.Name)
	if !ok {
		return fmt.Errorf("algorithm %q not registered", af.Name)
	}
	controller := alg.(*af.Af)

	tuning := config.Empty()
	if tuningPath != "" {
		tuning, err = config.Load(tuningPath)
		if err != nil {
			return err
		}
	}
	if err := controller.Read(tuning); err != nil {
		return err
	}
	controller.Initialise()

	controller.SwitchMode(stats.CameraMode{
		Width: 4608, Height: 2592, ScaleX: 1, ScaleY: 1,
	}, metadata.New())

	controller.SetRange(focusRange)
	controller.SetSpeed(speed)
	controller.SetMode(mode)
	switch mode {
	case af.ModeManual:
		controller.SetLensPosition(manualPos)
	case af.ModeAuto:
		controller.TriggerScan()
	}

	scene := sim.DefaultScene()
	scene.TrueFocus = trueFocus
	scene.PdafEnabled = pdaf

	runner := &sim.Runner{
		Alg:   controller,
		Scene: scene,
		Clock: timeutil.RealClock{},
	}
	if fps > 0 {
		runner.FrameInterval = time.Duration(float64(time.Second) / fps)
	}

	if lensPort != "" {
		lens, err := sim.OpenSerialLens(lensPort)
		if err != nil {
			return err
		}
		defer lens.Close()
		runner.ApplyLens = lens.Apply
	}

	started := time.Now()
	res, err := runner.Run(frames)
	if err != nil {
		return err
	}

	summary := sim.Summarise(res)
	log.Printf("afsim: %d frames, outcome=%s, final lens %.3f dioptres (peak contrast %.0f)",
		summary.Frames, summary.Outcome, summary.FinalLens, summary.PeakContrast)

	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
		if err := sim.WriteHTML(filepath.Join(outDir, "run.html"), res); err != nil {
			return err
		}
		if err := sim.WritePNG(filepath.Join(outDir, "run.png"), res); err != nil {
			return err
		}
	}

	if dbPath != "" {
		store, err := scanlog.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		run := &scanlog.ScanRun{
			RunID:            scanlog.NewRunID(),
			StartedUnixNanos: started.UnixNano(),
			Mode:             mode.String(),
			Speed:            speed.String(),
			FocusRange:       focusRange.String(),
			Outcome:          summary.Outcome,
			PeakDioptre:      summary.FinalLens,
			LensSetting:      res.Final.LensSetting.Value,
			Frames:           summary.Frames,
		}
		for _, smp := range res.Samples {
			run.Samples = append(run.Samples, scanlog.Sample{
				Frame:    smp.Frame,
				Lens:     smp.Lens,
				Contrast: smp.Contrast,
			})
		}
		if err := store.RecordScan(run); err != nil {
			return err
		}
		log.Printf("afsim: recorded run %s", run.RunID)
	}

	return nil
}

func parseMode(s string) (af.Mode, error) {
	switch s {
	case "manual":
		return af.ModeManual, nil
	case "auto":
		return af.ModeAuto, nil
	case "continuous":
		return af.ModeContinuous, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

func parseSpeed(s string) (af.Speed, error) {
	switch s {
	case "normal":
		return af.SpeedNormal, nil
	case "fast":
		return af.SpeedFast, nil
	}
	return 0, fmt.Errorf("unknown speed %q", s)
}

func parseRange(s string) (af.Range, error) {
	switch s {
	case "normal":
		return af.RangeNormal, nil
	case "macro":
		return af.RangeMacro, nil
	case "full":
		return af.RangeFull, nil
	}
	return 0, fmt.Errorf("unknown range %q", s)
}
