package gui

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"

	"github.com/robotsim/robots/internal/geo"
	"github.com/robotsim/robots/internal/robot"
	"golang.org/x/image/vector"
)

// Shape sizes in model units.
const (
	bodyLength  = 30
	bodyWidth   = 10
	eyeOffset   = 10
	eyeSize     = 5
	targetSize  = 5
	outline     = 1
	ellipseSegs = 48
)

var (
	Background  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	BodyColor   = color.RGBA{R: 255, G: 0, B: 255, A: 255}
	EyeColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	TargetColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	LineColor   = color.RGBA{A: 255}
)

// Render draws the robot and its target onto dst. scale converts model
// units to pixels. The robot is drawn at its rounded position.
func Render(dst *image.RGBA, snap robot.Snapshot, scale float64) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)
	if scale <= 0 {
		scale = 1
	}

	cx := geo.RoundHalfUp(snap.Pose.X)
	cy := geo.RoundHalfUp(snap.Pose.Y)
	h := snap.Pose.Heading

	r := &renderer{dst: dst, scale: scale}
	r.ellipse(cx, cy, bodyLength/2, bodyWidth/2, h, BodyColor)
	ex := float64(cx) + eyeOffset*math.Cos(h)
	ey := float64(cy) + eyeOffset*math.Sin(h)
	r.ellipseAt(ex, ey, eyeSize/2.0, eyeSize/2.0, 0, EyeColor)

	r.ellipse(snap.Target.X, snap.Target.Y, targetSize/2.0, targetSize/2.0, 0, TargetColor)
}

type renderer struct {
	dst   *image.RGBA
	scale float64
}

func (r *renderer) ellipse(cx, cy int, a, b, rot float64, fill color.RGBA) {
	r.ellipseAt(float64(cx), float64(cy), a, b, rot, fill)
}

// ellipseAt fills an outlined ellipse centred on the pixel (cx, cy).
func (r *renderer) ellipseAt(cx, cy, a, b, rot float64, fill color.RGBA) {
	half := outline / 2.0
	r.fillEllipse(cx, cy, a+half, b+half, rot, LineColor)
	r.fillEllipse(cx, cy, a-half, b-half, rot, fill)
}

func (r *renderer) fillEllipse(cx, cy, a, b, rot float64, c color.RGBA) {
	if a <= 0 || b <= 0 {
		return
	}
	bounds := r.dst.Bounds()
	z := vector.NewRasterizer(bounds.Dx(), bounds.Dy())

	sin, cos := math.Sincos(rot)
	// pixel centres sit at +0.5
	ox := (cx + 0.5) * r.scale
	oy := (cy + 0.5) * r.scale

	reach := math.Max(a, b) * r.scale
	if ox+reach < 0 || oy+reach < 0 || ox-reach > float64(bounds.Dx()) || oy-reach > float64(bounds.Dy()) {
		return
	}
	for i := 0; i <= ellipseSegs; i++ {
		t := 2 * math.Pi * float64(i) / ellipseSegs
		ux, uy := a*math.Cos(t), b*math.Sin(t)
		x := float32(ox + (ux*cos-uy*sin)*r.scale)
		y := float32(oy + (ux*sin+uy*cos)*r.scale)
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
	z.Draw(r.dst, bounds, image.NewUniform(c), image.Point{})
}

// FormatCoords renders a position with at most three decimals and no
// trailing zeros, e.g. "X: 123.457,  Y: 100".
func FormatCoords(x, y float64) string {
	return "X: " + formatCoord(x) + ",  Y: " + formatCoord(y)
}

func formatCoord(v float64) string {
	s := strconv.FormatFloat(v, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}
