package physics

import (
	"math"
	"testing"

	"github.com/san-kum/glide/internal/config"
	"github.com/san-kum/glide/internal/dynamo"
)

func motorConfig() config.MotorConfig {
	return config.DefaultConfig().Motor
}

func TestMotor_FeedForward(t *testing.T) {
	base := dynamo.Vec2{0, 100}
	m := NewMotor(motorConfig(), base)

	h := 0.01
	var s MotorSample
	for i := 0; i < 100; i++ {
		s = m.Advance(float64(i)*h, h, 4, 1e4)
	}

	if s.Omega != 4 {
		t.Errorf("omega = %g, want commanded 4", s.Omega)
	}
	wantLen := 0.25 * 4 * 1.0
	if math.Abs(s.Length-wantLen) > 1e-9 {
		t.Errorf("reeled length = %g, want %g", s.Length, wantLen)
	}
	if want := base.Add(dynamo.Vec2{0, wantLen}); s.Pos.Sub(want).Len() > 1e-9 {
		t.Errorf("anchor pos = %v, want %v", s.Pos, want)
	}
	if math.Abs(s.Vel[1]-1) > 1e-12 || s.Vel[0] != 0 {
		t.Errorf("anchor vel = %v, want (0, 1)", s.Vel)
	}
}

func TestMotor_ClosedLoopBounded(t *testing.T) {
	cfg := motorConfig()
	cfg.ClosedLoop = true
	cfg.Kp = 1e6
	m := NewMotor(cfg, dynamo.Zero)

	h := 0.001
	prev := 0.0
	for i := 0; i < 2000; i++ {
		s := m.Advance(float64(i)*h, h, 1e3, 0)
		if math.Abs(s.Omega) > maxMotorSpeed {
			t.Fatalf("omega %g exceeds limit", s.Omega)
		}
		if math.Abs(s.Omega-prev) > maxMotorAccel*h+1e-12 {
			t.Fatalf("step %d: omega jumped %g -> %g", i, prev, s.Omega)
		}
		if math.Abs(s.Torque) > cfg.TauMax {
			t.Fatalf("torque %g exceeds tau_max", s.Torque)
		}
		prev = s.Omega
	}
}

func TestMotor_ClosedLoopTracks(t *testing.T) {
	cfg := motorConfig()
	cfg.ClosedLoop = true
	cfg.Kp = 2
	m := NewMotor(cfg, dynamo.Zero)

	h := 0.001
	var s MotorSample
	for i := 0; i < 20000; i++ {
		s = m.Advance(float64(i)*h, h, 2, 0)
	}
	// friction leaves a small steady-state error for a pure P loop
	if math.Abs(s.Omega-2) > 0.1 {
		t.Errorf("omega = %g, want about 2", s.Omega)
	}
}

func TestMotor_ClosedLoopTensionSlows(t *testing.T) {
	cfg := motorConfig()
	cfg.ClosedLoop = true

	free := NewMotor(cfg, dynamo.Zero)
	loaded := NewMotor(cfg, dynamo.Zero)
	h := 0.001
	var a, b MotorSample
	for i := 0; i < 1000; i++ {
		a = free.Advance(float64(i)*h, h, 2, 0)
		b = loaded.Advance(float64(i)*h, h, 2, 20)
	}
	if b.Omega >= a.Omega {
		t.Errorf("tension load should slow the spool: free %g loaded %g", a.Omega, b.Omega)
	}
}

func TestMotor_Power(t *testing.T) {
	m := NewMotor(motorConfig(), dynamo.Zero)

	tests := []struct {
		name  string
		force dynamo.Vec2
		vel   dynamo.Vec2
		mech  float64
		elec  float64
	}{
		{"motoring", dynamo.Vec2{0, -100}, dynamo.Vec2{0, 1}, 100, 100 / 0.87},
		{"regenerating", dynamo.Vec2{0, -100}, dynamo.Vec2{0, -1}, -100, -87},
		{"idle", dynamo.Vec2{0, -100}, dynamo.Zero, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := m.Power(tt.force, tt.vel)
			if math.Abs(p.Mech-tt.mech) > 1e-9 || math.Abs(p.Elec-tt.elec) > 1e-9 {
				t.Errorf("Power = %+v, want mech %g elec %g", p, tt.mech, tt.elec)
			}
			if p.Loss() < -1e-12 {
				t.Errorf("motor loss %g is negative", p.Loss())
			}
		})
	}
}

func TestMotor_AxisNormalized(t *testing.T) {
	cfg := motorConfig()
	cfg.Axis = [2]float64{3, 4}
	m := NewMotor(cfg, dynamo.Zero)
	if math.Abs(m.Axis().Len()-1) > 1e-12 {
		t.Errorf("axis %v not unit length", m.Axis())
	}
	s := m.Advance(0, 1, 1, 0)
	if math.Abs(s.Vel.Len()-cfg.RSpool) > 1e-12 {
		t.Errorf("|v| = %g, want ωR", s.Vel.Len())
	}

	m.Reset()
	if s := m.Sample(); s.Length != 0 || s.Omega != 0 {
		t.Errorf("reset left state %+v", s)
	}
}
