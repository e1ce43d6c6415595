package physics

import (
	"math"
	"testing"

	"github.com/san-kum/glide/internal/config"
	"github.com/san-kum/glide/internal/dynamo"
)

func edtConfig(mode string) config.EDTConfig {
	return config.EDTConfig{
		Mode:       mode,
		B:          [3]float64{0, 0, 3.1e-5},
		Resistance: 50,
		IMax:       2.5,
	}
}

func TestEDT_OffIsZero(t *testing.T) {
	e := NewEDT(edtConfig(config.EDTOff))

	inputs := []struct {
		tip, vel dynamo.Vec2
		cmd      float64
	}{
		{dynamo.Vec2{0, -100}, dynamo.Vec2{7000, 0}, 1},
		{dynamo.Vec2{0, -100}, dynamo.Vec2{0, 0}, -0.5},
		{dynamo.Vec2{0, 0}, dynamo.Vec2{1, 1}, 3},
	}
	for _, in := range inputs {
		out := e.Evaluate(dynamo.Vec2{0, 0}, in.tip, in.vel, in.cmd)
		if out != (EDTOutput{}) {
			t.Errorf("off mode produced %+v", out)
		}
	}
}

func TestEDT_SignConvention(t *testing.T) {
	anchor := dynamo.Vec2{0, 0}
	tip := dynamo.Vec2{0, -100}

	velocities := []dynamo.Vec2{{7000, 0}, {-7000, 0}, {3, 4}, {0, -50}}
	for _, v := range velocities {
		boost := NewEDT(edtConfig(config.EDTBoost)).Evaluate(anchor, tip, v, 0.8)
		if boost.Orbit < 0 {
			t.Errorf("boost at v=%v: F·v = %g, want >= 0", v, boost.Orbit)
		}
		drag := NewEDT(edtConfig(config.EDTDrag)).Evaluate(anchor, tip, v, 0.8)
		if drag.Orbit > 0 {
			t.Errorf("drag at v=%v: F·v = %g, want <= 0", v, drag.Orbit)
		}
	}
}

func TestEDT_ForceMagnitudeAndDirection(t *testing.T) {
	cfg := edtConfig(config.EDTBoost)
	e := NewEDT(cfg)
	anchor := dynamo.Vec2{0, 0}
	tip := dynamo.Vec2{0, -100}

	out := e.Evaluate(anchor, tip, dynamo.Vec2{7000, 0}, 2)
	if out.Current != 2.5 {
		t.Errorf("current = %g, want clamp to I_max 2.5", out.Current)
	}
	want := 2.5 * 100 * 3.1e-5
	if math.Abs(out.Force.Len()-want) > 1e-12 {
		t.Errorf("|F| = %g, want %g", out.Force.Len(), want)
	}
	if math.Abs(out.Force.Dot(tip.Sub(anchor))) > 1e-12 {
		t.Errorf("force %v not perpendicular to tether", out.Force)
	}

	cfg.Length = 40
	fixed := NewEDT(cfg).Evaluate(anchor, tip, dynamo.Vec2{7000, 0}, 1)
	if math.Abs(fixed.Force.Len()-2.5*40*3.1e-5) > 1e-12 {
		t.Errorf("configured length ignored: |F| = %g", fixed.Force.Len())
	}
}

func TestEDT_PowerBookkeeping(t *testing.T) {
	anchor := dynamo.Vec2{0, 0}
	tip := dynamo.Vec2{0, -100}
	v := dynamo.Vec2{7000, 0}

	boost := NewEDT(edtConfig(config.EDTBoost)).Evaluate(anchor, tip, v, 1)
	if math.Abs(boost.Loss-2.5*2.5*50) > 1e-9 {
		t.Errorf("loss = %g, want I²R", boost.Loss)
	}
	if math.Abs(boost.Net-(boost.Loss+boost.Orbit)) > 1e-9 {
		t.Errorf("boost net = %g, want loss + orbit", boost.Net)
	}

	drag := NewEDT(edtConfig(config.EDTDrag)).Evaluate(anchor, tip, v, 1)
	if math.Abs(drag.Net-(drag.Loss+drag.Orbit)) > 1e-9 {
		t.Errorf("drag net = %g, want loss + orbit", drag.Net)
	}
	if drag.Net >= drag.Loss {
		t.Errorf("drag should offset resistive loss, net %g loss %g", drag.Net, drag.Loss)
	}
	if want := 7000 * 3.1e-5 * 100; math.Abs(drag.EMF-want) > 1e-9 {
		t.Errorf("emf = %g, want %g", drag.EMF, want)
	}
}

func TestEDT_ZeroSpanChargesLoss(t *testing.T) {
	e := NewEDT(edtConfig(config.EDTDrag))
	p := dynamo.Vec2{10, 10}

	out := e.Evaluate(p, p, dynamo.Vec2{1, 0}, 0.4)
	if out.Force != dynamo.Zero {
		t.Errorf("force = %v, want zero", out.Force)
	}
	if out.Loss == 0 || out.Net != out.Loss {
		t.Errorf("zero span should still charge resistive loss: %+v", out)
	}
}

func TestEDT_RestingTip(t *testing.T) {
	anchor := dynamo.Vec2{0, 0}
	tip := dynamo.Vec2{0, -100}

	boost := NewEDT(edtConfig(config.EDTBoost)).Evaluate(anchor, tip, dynamo.Zero, 1)
	drag := NewEDT(edtConfig(config.EDTDrag)).Evaluate(anchor, tip, dynamo.Zero, 1)
	if boost.Force.Add(drag.Force).Len() > 1e-15 {
		t.Errorf("boost %v and drag %v should be opposite at rest", boost.Force, drag.Force)
	}
}
