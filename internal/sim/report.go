package sim

import (
	"fmt"
	"image/color"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Summary condenses a run for logging and persistence.
type Summary struct {
	Frames       int
	FinalLens    float64
	MeanContrast float64
	PeakContrast float64
	Outcome      string
}

// Summarise computes run statistics from the trace.
func Summarise(res *Result) Summary {
	s := Summary{
		Frames:  len(res.Samples),
		Outcome: string(res.Final.State),
	}
	if len(res.Samples) == 0 {
		return s
	}

	contrast := make([]float64, len(res.Samples))
	for i, smp := range res.Samples {
		contrast[i] = smp.Contrast
		if smp.Contrast > s.PeakContrast {
			s.PeakContrast = smp.Contrast
		}
	}
	s.MeanContrast = stat.Mean(contrast, nil)
	s.FinalLens = res.Samples[len(res.Samples)-1].Lens
	return s
}

// WriteHTML renders an interactive lens/contrast chart of the run.
func WriteHTML(path string, res *Result) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "autofocus run",
			Subtitle: fmt.Sprintf("%d frames, final state %s", len(res.Samples), res.Final.State),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)

	frames := make([]string, len(res.Samples))
	lens := make([]opts.LineData, len(res.Samples))
	contrast := make([]opts.LineData, len(res.Samples))
	for i, smp := range res.Samples {
		frames[i] = fmt.Sprintf("%d", smp.Frame)
		lens[i] = opts.LineData{Value: smp.Lens}
		contrast[i] = opts.LineData{Value: smp.Contrast}
	}

	line.SetXAxis(frames).
		AddSeries("lens (dioptres)", lens).
		AddSeries("contrast", contrast)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()

	return line.Render(f)
}

// WritePNG renders a static lens-trajectory plot of the run.
func WritePNG(path string, res *Result) error {
	p := plot.New()
	p.Title.Text = "autofocus lens trajectory"
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "lens (dioptres)"

	pts := make(plotter.XYs, len(res.Samples))
	for i, smp := range res.Samples {
		pts[i].X = float64(smp.Frame)
		pts[i].Y = smp.Lens
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to build line plot: %w", err)
	}
	line.Color = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	p.Add(line)
	p.Legend.Add("lens", line)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
