package audioengine

import "math"

// Delay is a fixed-size feedback delay line. Buffer length is set at
// construction from the max delay time the engine will ever request, so
// Process never resizes it.
type Delay struct {
	buf      []float64
	pos      int
	feedback float64
	mix      float64
}

func NewDelay(maxSamples int) *Delay {
	return &Delay{buf: make([]float64, maxSamples)}
}

func (d *Delay) Configure(feedback, mix float64) {
	d.feedback = feedback
	d.mix = mix
}

func (d *Delay) Process(x float64) float64 {
	tap := d.buf[d.pos]
	d.buf[d.pos] = x + tap*d.feedback
	d.pos = (d.pos + 1) % len(d.buf)
	return x*(1-d.mix) + tap*d.mix
}

// Reverb is a small fixed bank of comb filters feeding an allpass, the
// classic Schroeder topology — cheap enough for allocation-free control-
// rate use and adequate as a send effect, not a mastering-grade reverb.
type Reverb struct {
	combs    [4]*Delay
	allpass  *Delay
	mix      float64
}

var combTuningSamples = [4]int{1557, 1617, 1491, 1422}
var allpassTuningSamples = 225

func NewReverb() *Reverb {
	r := &Reverb{allpass: NewDelay(allpassTuningSamples)}
	for i, n := range combTuningSamples {
		r.combs[i] = NewDelay(n)
		r.combs[i].Configure(0.84, 1.0)
	}
	r.allpass.Configure(0.5, 0.5)
	return r
}

func (r *Reverb) Configure(mix float64) { r.mix = mix }

func (r *Reverb) Process(x float64) float64 {
	var sum float64
	for _, c := range r.combs {
		sum += c.Process(x)
	}
	sum /= float64(len(r.combs))
	wet := r.allpass.Process(sum)
	return x*(1-r.mix) + wet*r.mix
}

// Drive is a tanh waveshaper — simple saturation distortion, amount in
// 0..1 maps to pre-gain 1..12.
func Drive(x, amount float64) float64 {
	gain := 1 + amount*11
	return math.Tanh(x*gain) / math.Tanh(gain)
}

// Limiter is the master look-ahead limiter (spec §4.I): look-ahead
// <= 5ms, hard ceiling -0.3dBFS, release >= 50ms. Its look-ahead buffer
// is sized once from sampleRate at construction.
type Limiter struct {
	buf        []float64
	pos        int
	ceiling    float64
	gain       float64
	releaseCoef float64
}

const (
	limiterLookaheadMs = 5
	limiterCeilingDB   = -0.3
	limiterReleaseMs   = 60
)

func NewLimiter(sampleRate int) *Limiter {
	lookahead := sampleRate * limiterLookaheadMs / 1000
	if lookahead < 1 {
		lookahead = 1
	}
	l := &Limiter{
		buf:     make([]float64, lookahead),
		ceiling: dbToLinear(limiterCeilingDB),
		gain:    1,
	}
	releaseSamples := float64(sampleRate) * limiterReleaseMs / 1000
	l.releaseCoef = math.Exp(-1 / releaseSamples)
	return l
}

func dbToLinear(db float64) float64 { return math.Pow(10, db/20) }

// Process feeds x through the look-ahead buffer and returns the delayed,
// gain-reduced sample. The gain is set from the loudest sample among the
// one being emitted and those still buffered (including x, not yet
// emitted), so gain is already reduced before a peak reaches the output
// — the "look-ahead" in look-ahead limiting.
func (l *Limiter) Process(x float64) float64 {
	out := l.buf[l.pos]
	l.buf[l.pos] = x
	l.pos = (l.pos + 1) % len(l.buf)

	peak := math.Abs(out)
	for _, s := range l.buf {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	targetGain := 1.0
	if peak > l.ceiling {
		targetGain = l.ceiling / peak
	}
	if targetGain < l.gain {
		l.gain = targetGain // instant attack: never exceed ceiling
	} else {
		l.gain = l.gain*l.releaseCoef + targetGain*(1-l.releaseCoef)
	}
	return out * l.gain
}
