package media

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/vector"

	"github.com/helian-labs/chatvault/internal/core/domain"
)

// maxPathVertices bounds the total path complexity of one sticker so a
// crafted animation cannot stall the rasterizer.
const maxPathVertices = 20_000

const (
	shapeGroup = "gr"
	shapePath  = "sh"
	shapeFill  = "fl"
)

// lottieAnim is the subset of the lottie schema the renderer understands:
// shape layers built from groups, cubic-bezier paths and solid fills.
// Unsupported features degrade to being skipped, not to a failure.
type lottieAnim struct {
	Width  int           `json:"w"`
	Height int           `json:"h"`
	Layers []lottieLayer `json:"layers"`
}

type lottieLayer struct {
	Type   int           `json:"ty"`
	Shapes []lottieShape `json:"shapes"`
}

type lottieShape struct {
	Type    string          `json:"ty"`
	Items   []lottieShape   `json:"it"`
	Path    *lottieProperty `json:"ks"`
	Color   *lottieProperty `json:"c"`
	Opacity *lottieProperty `json:"o"`
}

// lottieProperty is an animatable value. The renderer samples the in
// point: a static value directly, an animated one from its first
// keyframe.
type lottieProperty struct {
	Animated int             `json:"a"`
	Value    json.RawMessage `json:"k"`
}

type lottiePath struct {
	Closed   bool        `json:"c"`
	Vertices [][]float64 `json:"v"`
	InTan    [][]float64 `json:"i"`
	OutTan   [][]float64 `json:"o"`
}

type lottieKeyframe struct {
	Start json.RawMessage `json:"s"`
}

// normalizeVector renders a lottie-style sticker onto a fixed-size square
// canvas and encodes it as PNG. The whole render runs under the configured
// wall-clock budget; exceeding it fails this one asset.
func (n *Normalizer) normalizeVector(ctx context.Context, raw []byte, format string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, n.budgets.RenderBudget)
	defer cancel()

	data := raw
	if format == mimeTGS {
		var err error
		data, err = n.gunzipBounded(raw)
		if err != nil {
			return nil, &domain.DecodeError{Format: format, Reason: err.Error()}
		}
	}

	var anim lottieAnim
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&anim); err != nil {
		return nil, &domain.DecodeError{Format: format, Reason: "malformed animation json: " + err.Error()}
	}
	if anim.Width <= 0 || anim.Height <= 0 || anim.Width > 4096 || anim.Height > 4096 {
		return nil, &domain.DecodeError{Format: format, Reason: "implausible canvas size"}
	}

	size := n.budgets.StickerSize
	dst := image.NewRGBA(image.Rect(0, 0, size, size))

	scale := float64(size) / float64(anim.Width)
	if anim.Height > anim.Width {
		scale = float64(size) / float64(anim.Height)
	}

	budget := maxPathVertices

	// Lottie layer order puts the topmost layer first; paint back to
	// front.
	for li := len(anim.Layers) - 1; li >= 0; li-- {
		if err := ctx.Err(); err != nil {
			return nil, &domain.DecodeError{Format: format, Reason: "render budget exceeded"}
		}
		layer := anim.Layers[li]
		if layer.Type != 4 {
			continue
		}
		if err := renderShapes(dst, layer.Shapes, scale, &budget); err != nil {
			return nil, &domain.DecodeError{Format: format, Reason: err.Error()}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, &domain.DecodeError{Format: format, Reason: "re-encode: " + err.Error()}
	}
	return buf.Bytes(), nil
}

func (n *Normalizer) gunzipBounded(raw []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	limit := int64(n.budgets.MaxInputBytes)
	data, err := io.ReadAll(io.LimitReader(gz, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, &domain.DecodeError{Format: mimeTGS, Reason: "decompressed size exceeds ceiling"}
	}
	return data, nil
}

// renderShapes paints one shape list. A group's paths take the fill
// declared in the same group; path-only groups are skipped.
func renderShapes(dst *image.RGBA, shapes []lottieShape, scale float64, budget *int) error {
	var paths []lottiePath
	var fill color.Color

	for _, s := range shapes {
		switch s.Type {
		case shapeGroup:
			if err := renderShapes(dst, s.Items, scale, budget); err != nil {
				return err
			}
		case shapePath:
			p, ok := samplePath(s.Path)
			if !ok {
				continue
			}
			*budget -= len(p.Vertices)
			if *budget < 0 {
				return &domain.DecodeError{Reason: "path complexity exceeds ceiling"}
			}
			paths = append(paths, p)
		case shapeFill:
			fill = sampleFill(s.Color, s.Opacity)
		}
	}

	if fill == nil || len(paths) == 0 {
		return nil
	}

	b := dst.Bounds()
	r := vector.NewRasterizer(b.Dx(), b.Dy())
	for _, p := range paths {
		tracePath(r, p, scale)
	}
	r.Draw(dst, b, image.NewUniform(fill), image.Point{})
	return nil
}

// tracePath emits one closed cubic-bezier contour into the rasterizer.
// Control points are the vertex plus its out/in tangent, per the lottie
// path encoding.
func tracePath(r *vector.Rasterizer, p lottiePath, scale float64) {
	nv := len(p.Vertices)
	if nv < 2 || len(p.InTan) != nv || len(p.OutTan) != nv {
		return
	}
	at := func(pts [][]float64, i int) (float32, float32) {
		return float32(pts[i][0] * scale), float32(pts[i][1] * scale)
	}

	x0, y0 := at(p.Vertices, 0)
	r.MoveTo(x0, y0)

	segs := nv - 1
	if p.Closed {
		segs = nv
	}
	for i := 0; i < segs; i++ {
		j := (i + 1) % nv
		vx, vy := at(p.Vertices, i)
		ox, oy := at(p.OutTan, i)
		wx, wy := at(p.Vertices, j)
		ix, iy := at(p.InTan, j)
		r.CubeTo(vx+ox, vy+oy, wx+ix, wy+iy, wx, wy)
	}
	r.ClosePath()
}

// samplePath extracts the path value at the in point.
func samplePath(prop *lottieProperty) (lottiePath, bool) {
	var p lottiePath
	raw, ok := sampleValue(prop)
	if !ok {
		return p, false
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, false
	}
	for _, v := range p.Vertices {
		if len(v) < 2 {
			return p, false
		}
	}
	for _, v := range p.InTan {
		if len(v) < 2 {
			return p, false
		}
	}
	for _, v := range p.OutTan {
		if len(v) < 2 {
			return p, false
		}
	}
	return p, true
}

// sampleFill resolves a solid fill color with opacity, defaulting to
// opaque when the opacity property is absent.
func sampleFill(colorProp, opacityProp *lottieProperty) color.Color {
	raw, ok := sampleValue(colorProp)
	if !ok {
		return nil
	}
	var rgba []float64
	if err := json.Unmarshal(raw, &rgba); err != nil || len(rgba) < 3 {
		return nil
	}

	alpha := 100.0
	if op, ok := sampleValue(opacityProp); ok {
		var v float64
		if err := json.Unmarshal(op, &v); err == nil {
			alpha = v
		}
	}
	clamp := func(v float64) uint8 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 255
		}
		return uint8(v * 255)
	}
	return color.NRGBA{
		R: clamp(rgba[0]),
		G: clamp(rgba[1]),
		B: clamp(rgba[2]),
		A: clamp(alpha / 100),
	}
}

// sampleValue returns the static value of a property, or the first
// keyframe's start value for animated ones.
func sampleValue(prop *lottieProperty) (json.RawMessage, bool) {
	if prop == nil || len(prop.Value) == 0 {
		return nil, false
	}
	if prop.Animated == 0 {
		return prop.Value, true
	}

	var frames []lottieKeyframe
	if err := json.Unmarshal(prop.Value, &frames); err != nil || len(frames) == 0 {
		return nil, false
	}
	start := frames[0].Start
	if len(start) == 0 {
		return nil, false
	}

	// Keyframed values wrap the payload in a one-element array.
	var unwrapped []json.RawMessage
	if err := json.Unmarshal(start, &unwrapped); err == nil && len(unwrapped) == 1 {
		return unwrapped[0], true
	}
	return start, true
}
