package resample

import "math"

// designPolyphase builds the anti-aliasing FIR for ratio up/down and
// splits it into up polyphase branches. Taps are normalized so the
// full filter has DC gain up, which makes each branch unity gain.
func designPolyphase(up, down, tapsPerPhase int) (phases [][]float64, phaseLen int) {
	nTaps := tapsPerPhase * up

	// Cutoff at the tighter of the two Nyquist limits, pulled in a
	// little to trade passband width for stopband rejection.
	fc := (0.5 / float64(max(up, down))) * cutoffScale

	taps := make([]float64, nTaps)
	center := 0.5 * float64(nTaps-1)
	var sum float64
	for n := range nTaps {
		t := float64(n) - center
		taps[n] = 2 * fc * sinc(2*fc*t) * kaiser(n, nTaps, kaiserBeta)
		sum += taps[n]
	}

	scale := float64(up) / sum
	for i := range taps {
		taps[i] *= scale
	}

	phases = make([][]float64, up)
	for p := range up {
		branch := make([]float64, 0, (nTaps-p+up-1)/up)
		for i := p; i < nTaps; i += up {
			branch = append(branch, taps[i])
		}
		if len(branch) > phaseLen {
			phaseLen = len(branch)
		}
		phases[p] = branch
	}
	return phases, phaseLen
}

// approximateRatio finds num/den close to v by continued fractions,
// keeping den within maxDen.
func approximateRatio(v float64, maxDen int) (num, den int) {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 1, 1
	}

	a0 := math.Floor(v)
	p0, q0 := 1.0, 0.0
	p1, q1 := a0, 1.0
	x := v

	for {
		frac := x - math.Floor(x)
		if frac == 0 {
			break
		}
		x = 1 / frac
		a := math.Floor(x)
		p2 := a*p1 + p0
		q2 := a*q1 + q0
		if q2 > float64(maxDen) {
			break
		}
		p0, q0 = p1, q1
		p1, q1 = p2, q2
	}

	num = int(math.Round(p1))
	den = int(math.Round(q1))
	if num <= 0 || den <= 0 {
		return 1, 1
	}

	g := gcd(num, den)
	return num / g, den / g
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-12 {
		return 1
	}
	pix := math.Pi * x
	return math.Sin(pix) / pix
}

func kaiser(i, n int, beta float64) float64 {
	if n <= 1 || beta == 0 {
		return 1
	}
	t := 2*float64(i)/float64(n-1) - 1
	a := math.Sqrt(math.Max(0, 1-t*t))
	return i0(beta*a) / i0(beta)
}

// i0 is the zeroth-order modified Bessel function, by power series.
func i0(x float64) float64 {
	sum := 1.0
	term := 1.0
	x2 := x * x / 4
	for k := 1; k < 64; k++ {
		term *= x2 / float64(k*k)
		sum += term
		if term < 1e-16*sum {
			break
		}
	}
	return sum
}
