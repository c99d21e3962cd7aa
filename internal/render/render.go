// Package render draws attendee QR codes and personalized tickets.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // JPEG templates
	"image/png"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp" // WebP templates

	"github.com/ignite/eventpass/internal/pkg/logger"
)

// ErrInvalidColor is returned for a text color that is not #RGB or #RRGGBB.
var ErrInvalidColor = errors.New("invalid hex color")

// Options places the attendee name and QR code on the template.
type Options struct {
	TemplatePath string
	FontPath     string
	FontSize     float64
	NameY        int
	QRY          int
	QRSize       int
	TextColor    string
}

// Renderer produces PNG images. It is safe for concurrent use.
type Renderer struct {
	opts  Options
	color color.Color
	mu    sync.Mutex
	face  font.Face
	log   *logger.Logger
}

// New prepares a renderer. A font that cannot be loaded falls back to a
// built-in bitmap face with a warning; an invalid color is an error.
func New(opts Options) (*Renderer, error) {
	if opts.QRSize <= 0 {
		opts.QRSize = 350
	}
	if opts.FontSize <= 0 {
		opts.FontSize = 60
	}
	col, err := ParseHexColor(opts.TextColor)
	if err != nil {
		return nil, err
	}

	r := &Renderer{opts: opts, color: col, log: logger.With("render")}
	r.face, err = loadFace(opts.FontPath, opts.FontSize)
	if err != nil {
		r.log.Warn("font not loaded, using default face", "font", opts.FontPath, "error", err)
		r.face = basicfont.Face7x13
	}
	return r, nil
}

func loadFace(path string, size float64) (font.Face, error) {
	if path == "" {
		return nil, errors.New("no font configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
}

// QRCode encodes payload as a square PNG of the configured size.
func (r *Renderer) QRCode(payload string) ([]byte, error) {
	q, err := qrcode.New(payload, qrcode.Low)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	out, err := q.PNG(r.opts.QRSize)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	return out, nil
}

// Ticket draws name centered at NameY and the QR code centered at QRY on
// a fresh copy of the template.
func (r *Renderer) Ticket(name string, qrPNG []byte) ([]byte, error) {
	tpl, err := loadTemplate(r.opts.TemplatePath)
	if err != nil {
		return nil, err
	}
	qr, err := png.Decode(bytes.NewReader(qrPNG))
	if err != nil {
		return nil, fmt.Errorf("decode qr: %w", err)
	}

	b := tpl.Bounds()
	canvas := image.NewRGBA(b)
	draw.Draw(canvas, b, tpl, b.Min, draw.Src)

	r.drawName(canvas, name)

	if qb := qr.Bounds(); qb.Dx() != r.opts.QRSize || qb.Dy() != r.opts.QRSize {
		scaled := image.NewRGBA(image.Rect(0, 0, r.opts.QRSize, r.opts.QRSize))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), qr, qb, draw.Over, nil)
		qr = scaled
	}
	qb := qr.Bounds()
	at := image.Pt(b.Min.X+(b.Dx()-qb.Dx())/2, b.Min.Y+r.opts.QRY)
	draw.Draw(canvas, image.Rectangle{Min: at, Max: at.Add(qb.Size())}, qr, qb.Min, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode ticket: %w", err)
	}
	return buf.Bytes(), nil
}

// drawName renders name with its top edge at NameY.
func (r *Renderer) drawName(dst *image.RGBA, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := dst.Bounds()
	width := font.MeasureString(r.face, name).Ceil()
	ascent := r.face.Metrics().Ascent.Ceil()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(r.color),
		Face: r.face,
		Dot:  fixed.P(b.Min.X+(b.Dx()-width)/2, b.Min.Y+r.opts.NameY+ascent),
	}
	d.DrawString(name)
}

func loadTemplate(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open template: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode template %s: %w", path, err)
	}
	return img, nil
}

// ParseHexColor parses #RGB or #RRGGBB (leading # optional). Empty means
// black.
func ParseHexColor(s string) (color.Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return color.Black, nil
	}
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
