package loudness

import "math"

// biquad is a second order IIR section in direct form I.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64

	x1, x2, y1, y2 float64
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// kFilter is the two stage K-weighting pre-filter of ITU-R BS.1770: a high
// shelf modelling the acoustic effect of the head, followed by a high-pass.
// Coefficients are derived for any sample rate.
type kFilter struct {
	shelf, highpass biquad
}

func newKFilter(rate float64) *kFilter {
	f := &kFilter{}

	{
		const (
			f0 = 1681.974450955533
			g  = 3.999843853973347
			q  = 0.7071752369554196
		)
		k := math.Tan(math.Pi * f0 / rate)
		vh := math.Pow(10, g/20)
		vb := math.Pow(vh, 0.4996667741545416)
		a0 := 1 + k/q + k*k

		f.shelf = biquad{
			b0: (vh + vb*k/q + k*k) / a0,
			b1: 2 * (k*k - vh) / a0,
			b2: (vh - vb*k/q + k*k) / a0,
			a1: 2 * (k*k - 1) / a0,
			a2: (1 - k/q + k*k) / a0,
		}
	}

	{
		const (
			f0 = 38.13547087602444
			q  = 0.5003270373238773
		)
		k := math.Tan(math.Pi * f0 / rate)
		a0 := 1 + k/q + k*k

		f.highpass = biquad{
			b0: 1,
			b1: -2,
			b2: 1,
			a1: 2 * (k*k - 1) / a0,
			a2: (1 - k/q + k*k) / a0,
		}
	}

	return f
}

func (f *kFilter) process(x float64) float64 {
	return f.highpass.process(f.shelf.process(x))
}
