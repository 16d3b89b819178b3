// Package render draws PNG previews of routed boards.
package render

import (
	"image/color"
	"io"
	"math"
	"os"

	"github.com/gogpu/gg"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/rules"
)

// DefaultScale is the preview resolution in pixels per millimetre
const DefaultScale = 20.0

// MaxDimension caps the image side in pixels. Larger boards are drawn at
// a lower scale.
const MaxDimension = 8192

// Scene is everything a preview shows
type Scene struct {
	Board      primitives.BoardGeometry
	Stack      *rules.LayerStack
	Components []primitives.Component
	Obstacles  []primitives.Obstacle
	Keepouts   []primitives.Obstacle
	Routes     []*primitives.Route
	Overused   []sexp.Position // Centres of overused grid cells
	CellSize   float64         // Grid pitch in mm
}

// SceneOf collects the inputs of job and the committed routes of ar
func SceneOf(job *router.Job, ar *router.Autorouter) Scene {
	s := Scene{
		Board:      job.Board,
		Components: job.Components,
		Obstacles:  job.Obstacles,
		Keepouts:   job.Keepouts,
	}
	if ar == nil {
		return s
	}
	s.Stack = ar.Stack()
	s.Routes = ar.Routes()
	g := ar.Grid()
	s.CellSize = g.Resolution()
	for _, c := range g.FindOverusedCells() {
		s.Overused = append(s.Overused, g.Point(c.Col, c.Row))
	}
	return s
}

// Options configures a preview
type Options struct {
	Scale  float64      // Pixels per mm, 0 = DefaultScale
	Theme  ColorTheme   // Layer colours
	Layers *LayerConfig // nil = every layer
	Flip   bool         // View from below
}

type painter struct {
	dc    *gg.Context
	cam   *Camera
	theme ColorTheme
	err   error
}

func rgba(c color.NRGBA) gg.RGBA {
	return gg.RGBA2(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255, float64(c.A)/255)
}

func (p *painter) setColor(c color.NRGBA) {
	col := rgba(c)
	p.dc.SetRGBA(col.R, col.G, col.B, col.A)
}

func (p *painter) fill() {
	if err := p.dc.Fill(); err != nil && p.err == nil {
		p.err = err
	}
}

func (p *painter) stroke() {
	if err := p.dc.Stroke(); err != nil && p.err == nil {
		p.err = err
	}
}

func (p *painter) rect(bb sexp.BoundingBox) {
	x0, y0 := p.cam.WorldToScreen(bb.Min)
	x1, y1 := p.cam.WorldToScreen(bb.Max)
	p.dc.DrawRectangle(math.Min(x0, x1), math.Min(y0, y1), math.Abs(x1-x0), math.Abs(y1-y0))
}

func (p *painter) polygon(pts []sexp.Position) {
	for i, pt := range pts {
		x, y := p.cam.WorldToScreen(pt)
		if i == 0 {
			p.dc.MoveTo(x, y)
		} else {
			p.dc.LineTo(x, y)
		}
	}
	p.dc.ClosePath()
}

func (p *painter) circle(c sexp.Position, diameter float64) {
	x, y := p.cam.WorldToScreen(c)
	p.dc.DrawCircle(x, y, p.cam.Length(diameter/2))
}

// Render draws the scene. Layers are painted bottom first so that the
// front copper ends up on top.
func Render(s Scene, opts Options) (*gg.Context, error) {
	bounds := s.Board.Bounds()
	if bounds.IsEmpty() || bounds.Width() <= 0 || bounds.Height() <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "board has no area to draw")
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = DefaultScale
	}
	if side := math.Max(bounds.Width(), bounds.Height()) * scale / 0.9; side > MaxDimension {
		scale *= MaxDimension / side
	}
	w := int(math.Ceil(bounds.Width() * scale / 0.9))
	h := int(math.Ceil(bounds.Height() * scale / 0.9))

	dc := gg.NewContext(w, h)
	cam := NewCamera(w, h)
	cam.Fit(bounds)
	cam.FlipView = opts.Flip
	p := &painter{dc: dc, cam: cam, theme: opts.Theme}

	dc.ClearWithColor(rgba(ColorBackground))

	// Substrate and outline
	outline := s.Board.Outline
	if len(outline) < 3 {
		outline = []sexp.Position{
			bounds.Min,
			{X: bounds.Max.X, Y: bounds.Min.Y},
			bounds.Max,
			{X: bounds.Min.X, Y: bounds.Max.Y},
		}
	}
	p.setColor(SubstrateColor(opts.Theme))
	p.polygon(outline)
	p.fill()
	p.setColor(LayerColor(opts.Theme, "Edge.Cuts"))
	dc.SetLineWidth(math.Max(1, cam.Length(0.1)))
	p.polygon(outline)
	p.stroke()

	p.setColor(ColorKeepout)
	for _, k := range s.Keepouts {
		p.rect(k.Bounds)
		p.fill()
	}
	p.setColor(ColorObstacle)
	for _, o := range s.Obstacles {
		p.rect(o.Bounds)
		p.fill()
	}

	layers := 2
	if s.Stack != nil {
		layers = s.Stack.Count()
	}
	layerName := func(i int) string {
		if s.Stack != nil {
			return s.Stack.LayerName(i)
		}
		return rules.CopperLayerName(i, layers)
	}

	dc.SetLineCap(gg.LineCapRound)
	for l := layers - 1; l >= 0; l-- {
		name := layerName(l)
		if !opts.Layers.IsVisible(name) {
			continue
		}
		p.setColor(LayerColor(opts.Theme, name))
		for _, r := range s.Routes {
			for _, seg := range r.Segments {
				if seg.Layer != l {
					continue
				}
				x0, y0 := cam.WorldToScreen(seg.Start)
				x1, y1 := cam.WorldToScreen(seg.End)
				dc.SetLineWidth(math.Max(1, cam.Length(seg.Width)))
				dc.DrawLine(x0, y0, x1, y1)
				p.stroke()
			}
		}
	}

	p.setColor(ColorPad)
	for _, c := range s.Components {
		for _, pad := range c.Pads {
			p.rect(pad.Bounds())
			p.fill()
		}
	}
	for _, c := range s.Components {
		for _, pad := range c.Pads {
			if pad.ThroughHole && pad.Drill > 0 {
				p.setColor(ColorDrill)
				p.circle(pad.Position, pad.Drill)
				p.fill()
			}
		}
	}

	for _, r := range s.Routes {
		for _, v := range r.Vias {
			p.setColor(ColorVia)
			p.circle(v.Position, v.Diameter)
			p.fill()
			p.setColor(ColorDrill)
			p.circle(v.Position, v.Drill)
			p.fill()
		}
	}

	if s.CellSize > 0 {
		p.setColor(ColorOverflow)
		for _, c := range s.Overused {
			p.rect(sexp.RectAround(c, sexp.Size{Width: s.CellSize, Height: s.CellSize}))
			p.fill()
		}
	}

	if p.err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, p.err, "drawing preview")
	}
	return dc, nil
}

// WritePNG renders the scene and encodes it as PNG
func WritePNG(w io.Writer, s Scene, opts Options) error {
	dc, err := Render(s, opts)
	if err != nil {
		return err
	}
	defer dc.Close()
	if err := dc.EncodePNG(w); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encoding preview")
	}
	return nil
}

// SavePNG renders the scene to a PNG file
func SavePNG(path string, s Scene, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "creating %s", path)
	}
	if err := WritePNG(f, s, opts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "closing %s", path)
	}
	return nil
}
