package gui

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/robotsim/robots/internal/robot"
)

// SnapshotSource provides the state to draw.
type SnapshotSource interface {
	Snapshot() robot.Snapshot
}

// GamePane draws the robot and reports taps in model coordinates.
type GamePane struct {
	widget.BaseWidget

	source SnapshotSource
	onTap  func(x, y float64)
	raster *canvas.Raster
	img    *image.RGBA
}

// NewGamePane creates the pane. onTap receives the tap position in model
// units, which are fyne's device independent units.
func NewGamePane(source SnapshotSource, onTap func(x, y float64)) *GamePane {
	p := &GamePane{source: source, onTap: onTap}
	p.raster = canvas.NewRaster(p.draw)
	p.ExtendBaseWidget(p)
	return p
}

// draw runs on the fyne render goroutine with the size in pixels.
func (p *GamePane) draw(w, h int) image.Image {
	if p.img == nil || p.img.Bounds().Dx() != w || p.img.Bounds().Dy() != h {
		p.img = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	scale := 1.0
	if size := p.Size(); size.Width > 0 {
		scale = float64(w) / float64(size.Width)
	}
	Render(p.img, p.source.Snapshot(), scale)
	return p.img
}

// Tapped implements fyne.Tappable.
func (p *GamePane) Tapped(ev *fyne.PointEvent) {
	if p.onTap != nil {
		p.onTap(float64(ev.Position.X), float64(ev.Position.Y))
	}
}

// MinSize keeps a usable drawing area.
func (p *GamePane) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// CreateRenderer implements fyne.Widget.
func (p *GamePane) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(p.raster)
}
