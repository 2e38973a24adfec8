package fields

import (
	"fmt"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/mask"
	"github.com/pthm-cable/scatter/noise"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/transfer"
)

func (b *builder) patterns(pc *scatter.PatternCategory, prefix string) {
	if !pc.Master {
		return
	}
	for i, s := range pc.Slots() {
		b.pattern(s, fmt.Sprintf("%s%d", prefix, i+1))
	}
}

// pattern adds a texture-valued feature. Pattern values go to the
// influence stage as they are, without a falloff.
func (b *builder) pattern(s *scatter.PatternSlot, feature string) {
	if !s.Allow {
		return
	}
	pr := gauge{feature: feature, infl: &s.Influence, mask: &s.Mask, value: true}
	switch s.Source {
	case scatter.PatternImage:
		im, ok := b.ev.Scene().Image(s.TexturePtr)
		if !ok {
			b.report(scatter.KindInvalidReference, feature+"_texture_ptr", "image %q not found", s.TexturePtr)
			return
		}
		cov, err := transfer.Shared(b.ev.Surfaces, transfer.AttrUV, s.UVPtr, b.sys.ID, feature+"_uv_ptr")
		if err != nil {
			b.ev.Report.Add(err)
		}
		if cov == transfer.CoverNone {
			return
		}
		scale := s.Scale
		if scale == 0 {
			scale = 1
		}
		pr.eval = func(p *scatter.Point) (float64, geom.Vec) {
			uv, _ := b.ev.Attrs.UV(p, s.UVPtr)
			col := im.Sample(uv[0]*scale, uv[1]*scale)
			v := mask.SampleColor(col, s.ColorSample, s.IDColor, s.IDTolerance)
			return noise.BrightnessContrast(v, s.Brightness, s.Contrast), geom.Zero
		}
	default:
		tex := noise.Texture{
			Basis:      noise.BasisGradient,
			Scale:      s.Scale,
			Seed:       int64(b.sys.Seed(feature, s.Seed)),
			Octaves:    3,
			Brightness: s.Brightness,
			Contrast:   s.Contrast,
		}
		pr.eval = func(p *scatter.Point) (float64, geom.Vec) {
			return tex.Sample(b.ev.Attrs.Position(p, s.Space)), geom.Zero
		}
	}
	b.add(pr)
}
