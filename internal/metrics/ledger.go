package metrics

import (
	"math"
)

// Flows are the energy transfers accumulated over one outer step, in joules.
// Work terms are positive into the tether; loss terms are positive
// dissipation.
type Flows struct {
	EDTWork         float64 // ∫ F_edt·v_tip dt
	AnchorWork      float64 // ∫ −F_0·v_0 dt
	DampingLoss     float64 // ∫ Σ c·rel² dt
	ResistiveLoss   float64 // ∫ I²R dt
	MotorLoss       float64 // electrical minus mechanical motor energy
	NumericalLoss   float64 // kinetic energy removed by decay and the limiter
	ConstraintDelta float64 // mechanical energy change across the constraint pass
	RefShift        float64 // −M·ΔU(p_0), the moving potential reference
	EDTDraw         float64 // battery energy drawn by the EDT
	MotorDraw       float64 // battery energy drawn by the motor
}

func (f *Flows) Add(o Flows) {
	f.EDTWork += o.EDTWork
	f.AnchorWork += o.AnchorWork
	f.DampingLoss += o.DampingLoss
	f.ResistiveLoss += o.ResistiveLoss
	f.MotorLoss += o.MotorLoss
	f.NumericalLoss += o.NumericalLoss
	f.ConstraintDelta += o.ConstraintDelta
	f.RefShift += o.RefShift
	f.EDTDraw += o.EDTDraw
	f.MotorDraw += o.MotorDraw
}

// Explained is the mechanical energy change the flows account for.
func (f Flows) Explained() float64 {
	return f.EDTWork + f.AnchorWork + f.RefShift - f.DampingLoss - f.NumericalLoss + f.ConstraintDelta
}

// Magnitude sums the absolute mechanical exchanges of the step. It does not
// depend on where the potential reference sits.
func (f Flows) Magnitude() float64 {
	return math.Abs(f.EDTWork) + math.Abs(f.AnchorWork) + math.Abs(f.RefShift) +
		f.DampingLoss + f.NumericalLoss + math.Abs(f.ConstraintDelta)
}

// Dissipated is the energy lost to damping, resistance, motor inefficiency
// and numerical decay.
func (f Flows) Dissipated() float64 {
	return f.DampingLoss + f.ResistiveLoss + f.MotorLoss + f.NumericalLoss
}

// Record is one row of the energy time series.
type Record struct {
	Time float64
	Step int
	Buckets
	Flows

	OmegaCmd   float64
	CurrentCmd float64
	Tension    float64
	MaxStretch float64

	Residual    float64
	Unexplained float64 // running sum of Residual since the start
	Drift       bool
}

// DriftWarning flags a step whose mechanical energy change is not explained
// by the recorded flows.
type DriftWarning struct {
	Step     int
	Time     float64
	Residual float64
	Limit    float64
}

// Summary describes a finished run.
type Summary struct {
	Final         Record
	Steps         int
	Records       int
	MinTotal      float64
	MaxTotal      float64
	MaxResidual   float64
	Unexplained   float64
	Totals        Flows
	Dissipated    float64
	DriftWarnings int
	ClampEvents   int
}

// Ledger checks every step's energy balance and keeps the records due at
// the configured cadence.
type Ledger struct {
	tolerance float64
	floor     float64
	interval  float64

	records  []Record
	warnings []DriftWarning
	prev     Buckets
	started  bool
	lastKept float64

	steps       int
	minTotal    float64
	maxTotal    float64
	maxResidual float64
	unexplained float64
	totals      Flows
	clamps      int
	last        Record
}

// NewLedger returns a ledger that warns when a step's residual exceeds
// tolerance·(E_kin + E_el + |ΔE_grav| + Σ|flows|) + floor and keeps one
// record every interval seconds (every step when interval is zero). A zero
// tolerance disables the check.
func NewLedger(tolerance, floor, interval float64) *Ledger {
	return &Ledger{
		tolerance: tolerance,
		floor:     floor,
		interval:  interval,
		minTotal:  math.Inf(1),
		maxTotal:  math.Inf(-1),
	}
}

// Start seeds the ledger with the initial state and stores it as the first
// record.
func (l *Ledger) Start(rec Record) Record {
	l.prev = rec.Buckets
	l.started = true
	l.track(rec)
	l.keep(rec)
	return rec
}

// Append closes the balance of one step: rec carries the buckets after the
// step and the flows accumulated during it. It returns the completed record,
// whether it was kept, and a warning when the residual is over tolerance.
func (l *Ledger) Append(rec Record) (Record, bool, *DriftWarning) {
	if !l.started {
		return l.Start(rec), true, nil
	}

	rec.Residual = (rec.Mechanical() - l.prev.Mechanical()) - rec.Explained()
	l.unexplained += rec.Residual
	rec.Unexplained = l.unexplained
	limit := l.Limit(rec)

	var warn *DriftWarning
	if l.tolerance > 0 && math.Abs(rec.Residual) > limit {
		rec.Drift = true
		warn = &DriftWarning{Step: rec.Step, Time: rec.Time, Residual: rec.Residual, Limit: limit}
		l.warnings = append(l.warnings, *warn)
	}

	l.steps++
	l.totals.Add(rec.Flows)
	l.maxResidual = math.Max(l.maxResidual, math.Abs(rec.Residual))
	l.prev = rec.Buckets
	l.track(rec)

	kept := l.interval <= 0 || rec.Time-l.lastKept >= l.interval-1e-9
	if kept {
		l.keep(rec)
	}
	return rec, kept, warn
}

// Limit is the residual allowed for rec, which must follow the last appended
// record. The scale uses only the energy held in motion and stretch and the
// energy moved during the step, so the absolute level of E_grav cannot
// widen it.
func (l *Ledger) Limit(rec Record) float64 {
	scale := rec.Kinetic + rec.Elastic + math.Abs(rec.Grav-l.prev.Grav) + rec.Flows.Magnitude()
	return l.tolerance*scale + l.floor
}

// NoteClamp counts a battery clamp event against the run.
func (l *Ledger) NoteClamp(ClampEvent) { l.clamps++ }

func (l *Ledger) Records() []Record        { return l.records }
func (l *Ledger) Warnings() []DriftWarning { return l.warnings }
func (l *Ledger) Last() Record             { return l.last }

func (l *Ledger) Summary() Summary {
	s := Summary{
		Final:         l.last,
		Steps:         l.steps,
		Records:       len(l.records),
		MinTotal:      l.minTotal,
		MaxTotal:      l.maxTotal,
		MaxResidual:   l.maxResidual,
		Unexplained:   l.unexplained,
		Totals:        l.totals,
		Dissipated:    l.totals.Dissipated(),
		DriftWarnings: len(l.warnings),
		ClampEvents:   l.clamps,
	}
	if !l.started {
		s.MinTotal, s.MaxTotal = 0, 0
	}
	return s
}

func (l *Ledger) track(rec Record) {
	l.minTotal = math.Min(l.minTotal, rec.Total)
	l.maxTotal = math.Max(l.maxTotal, rec.Total)
	l.last = rec
}

func (l *Ledger) keep(rec Record) {
	l.records = append(l.records, rec)
	l.lastKept = rec.Time
}
