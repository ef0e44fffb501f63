package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/hyperjump/chatgraph/pkg/utils"
)

// Surface is a 2D drawing target in screen pixels. Colors are "#rrggbb".
type Surface interface {
	Clear(color string)
	Line(x1, y1, x2, y2, width float64, color string, alpha float64)
	Circle(x, y, r float64, color string, alpha float64)
	Rect(x, y, w, h float64, color string, alpha float64)
	// Text draws s with its baseline at y.
	Text(s string, x, y float64, color string)
	MeasureText(s string) float64
}

// GGSurface draws onto an in-memory image.
type GGSurface struct {
	dc *gg.Context
}

// NewGGSurface creates a w×h surface using the fixed 7x13 font.
func NewGGSurface(w, h int) *GGSurface {
	dc := gg.NewContext(w, h)
	dc.SetFontFace(basicfont.Face7x13)
	return &GGSurface{dc: dc}
}

func (s *GGSurface) setColor(color string, alpha float64) {
	hex := strings.TrimPrefix(color, "#")
	if len(hex) == 6 && alpha < 1 {
		hex += fmt.Sprintf("%02x", uint8(utils.Clamp(alpha, 0, 1)*255+0.5))
	}
	s.dc.SetHexColor(hex)
}

func (s *GGSurface) Clear(color string) {
	s.setColor(color, 1)
	s.dc.Clear()
}

func (s *GGSurface) Line(x1, y1, x2, y2, width float64, color string, alpha float64) {
	s.setColor(color, alpha)
	s.dc.SetLineWidth(width)
	s.dc.DrawLine(x1, y1, x2, y2)
	s.dc.Stroke()
}

func (s *GGSurface) Circle(x, y, r float64, color string, alpha float64) {
	s.setColor(color, alpha)
	s.dc.DrawCircle(x, y, r)
	s.dc.Fill()
}

func (s *GGSurface) Rect(x, y, w, h float64, color string, alpha float64) {
	s.setColor(color, alpha)
	s.dc.DrawRectangle(x, y, w, h)
	s.dc.Fill()
}

func (s *GGSurface) Text(text string, x, y float64, color string) {
	s.setColor(color, 1)
	s.dc.DrawString(text, x, y)
}

func (s *GGSurface) MeasureText(text string) float64 {
	w, _ := s.dc.MeasureString(text)
	return w
}

// EncodePNG writes the surface as PNG.
func (s *GGSurface) EncodePNG(w io.Writer) error {
	return s.dc.EncodePNG(w)
}
