package irf

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/fogleman/gg"
)

// Fixed plot ranges: 0.1 to 100 TeV and 1e3 to 1e7 m².
const (
	plotEnergyMin = 0.1
	plotEnergyMax = 100
	plotAreaMin   = 1e3
	plotAreaMax   = 1e7
)

// PlotOptions configures Plot and SavePlot. Zero sizes fall back to 800x600.
type PlotOptions struct {
	Width  int
	Height int
	// Logger receives a record after SavePlot writes a file. Nil disables it.
	Logger *slog.Logger
}

// MaxPlotSide is the largest width or height Plot renders.
const MaxPlotSide = 8192

func (o PlotOptions) size() (int, int, error) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = 800
	}
	if h <= 0 {
		h = 600
	}
	if w > MaxPlotSide || h > MaxPlotSide {
		return 0, 0, fmt.Errorf("plot size %dx%d exceeds %dx%d", w, h, MaxPlotSide, MaxPlotSide)
	}
	return w, h, nil
}

// plotFrame maps TeV/m² to pixel coordinates on log-log axes.
type plotFrame struct {
	left, top, width, height float64
}

func (f plotFrame) x(e float64) float64 {
	lo, hi := math.Log10(plotEnergyMin), math.Log10(plotEnergyMax)
	return f.left + (math.Log10(e)-lo)/(hi-lo)*f.width
}

func (f plotFrame) y(a float64) float64 {
	lo, hi := math.Log10(plotAreaMin), math.Log10(plotAreaMax)
	return f.top + f.height - (math.Log10(a)-lo)/(hi-lo)*f.height
}

// Plot renders effective area against energy_hi as a PNG to w, with dashed
// markers at both safe energy thresholds.
func (t *EffectiveAreaTable) Plot(w io.Writer, opts PlotOptions) error {
	dc, err := t.render(opts)
	if err != nil {
		return err
	}
	return dc.EncodePNG(w)
}

// SavePlot renders the plot to a PNG file at path.
func (t *EffectiveAreaTable) SavePlot(path string, opts PlotOptions) error {
	dc, err := t.render(opts)
	if err != nil {
		return err
	}
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	if opts.Logger != nil {
		opts.Logger.Info("wrote plot", "path", path)
	}
	return nil
}

func (t *EffectiveAreaTable) render(opts PlotOptions) (*gg.Context, error) {
	width, height, err := opts.size()
	if err != nil {
		return nil, err
	}
	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	f := plotFrame{left: 80, top: 20}
	f.width = float64(width) - f.left - 20
	f.height = float64(height) - f.top - 50

	drawAxes(dc, f)

	dc.Push()
	dc.DrawRectangle(f.left, f.top, f.width, f.height)
	dc.Clip()

	dc.SetRGB(0.12, 0.47, 0.71)
	dc.SetLineWidth(2)
	started := false
	for i, e := range t.energyHi {
		a := t.effectiveArea[i]
		if e <= 0 || a <= 0 {
			started = false
			continue
		}
		if !started {
			dc.MoveTo(f.x(e), f.y(a))
			started = true
			continue
		}
		dc.LineTo(f.x(e), f.y(a))
	}
	dc.Stroke()

	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.SetDash(6, 4)
	for _, e := range []float64{t.threshHi, t.threshLo} {
		if e > 0 {
			dc.DrawLine(f.x(e), f.y(plotAreaMin), f.x(e), f.y(plotAreaMax))
			dc.Stroke()
		}
	}
	dc.SetDash()
	dc.ResetClip()
	dc.Pop()

	if t.threshHi > 0 {
		x := t.threshHi - 1
		if x <= 0 {
			x = t.threshHi
		}
		label := "Safe energy threshold: " + t.ThresholdHi().Fmt("%3.2f")
		dc.DrawStringAnchored(label, f.x(x), f.y(3e6), 1, 0)
	}
	if t.threshLo > 0 {
		label := "Safe energy threshold: " + t.ThresholdLo().Fmt("%3.2f")
		dc.DrawStringAnchored(label, f.x(t.threshLo+0.1), f.y(3e3), 0, 0)
	}
	return dc, nil
}

func drawAxes(dc *gg.Context, f plotFrame) {
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.DrawRectangle(f.left, f.top, f.width, f.height)
	dc.Stroke()

	for _, e := range []float64{0.1, 1, 10, 100} {
		x := f.x(e)
		dc.DrawLine(x, f.top+f.height, x, f.top+f.height-6)
		dc.Stroke()
		dc.DrawStringAnchored(fmt.Sprintf("%g", e), x, f.top+f.height+6, 0.5, 1)
	}
	for p := 3; p <= 7; p++ {
		y := f.y(math.Pow(10, float64(p)))
		dc.DrawLine(f.left, y, f.left+6, y)
		dc.Stroke()
		dc.DrawStringAnchored(fmt.Sprintf("1e%d", p), f.left-6, y, 1, 0.5)
	}

	dc.DrawStringAnchored("Energy [TeV]", f.left+f.width/2, f.top+f.height+36, 0.5, 0)
	dc.Push()
	dc.RotateAbout(-math.Pi/2, 20, f.top+f.height/2)
	dc.DrawStringAnchored("Effective Area [m^2]", 20, f.top+f.height/2, 0.5, 0.5)
	dc.Pop()
}
