package dynamics

import (
	"fmt"
	"math"
)

const (
	defaultThresholdDB = -24.0
	defaultRatio       = 4.0
	defaultKneeDB      = 30.0
	defaultAttackMs    = 3.0
	defaultReleaseMs   = 250.0

	minRatio     = 1.0
	maxRatio     = 100.0
	minAttackMs  = 0.1
	maxAttackMs  = 1000.0
	minReleaseMs = 1.0
	maxReleaseMs = 5000.0
	minKneeDB    = 0.0
	maxKneeDB    = 30.0
	minThreshDB  = -120.0
	maxThreshDB  = 0.0

	// log2(10)/20: converts dB to the log2 domain the gain computer runs in.
	log2Of10Div20 = 0.166096404744
)

// Compressor is a mono soft-knee compressor with logarithmic-domain gain
// calculation.
//
// It is single-threaded and not thread-safe; the processing graph owns one
// instance per chain and serializes setter calls with processing.
type Compressor struct {
	thresholdDB  float64
	ratio        float64
	kneeDB       float64
	attackMs     float64
	releaseMs    float64
	makeupGainDB float64
	autoMakeup   bool

	sampleRate float64

	// Envelope follower state
	peakLevel float64

	// Cached coefficients
	attackCoeff      float64
	releaseCoeff     float64
	thresholdLog2    float64
	kneeWidthLog2    float64
	invKneeWidthLog2 float64
	makeupGainLin    float64

	// Gain applied to the most recent sample, before makeup.
	lastGain float64
}

// NewCompressor creates a soft-knee compressor.
//
// Defaults: threshold -24 dB, ratio 4:1, knee 30 dB, attack 3 ms,
// release 250 ms, auto makeup enabled.
func NewCompressor(sampleRate float64) (*Compressor, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("compressor sample rate must be positive and finite: %f", sampleRate)
	}

	c := &Compressor{
		thresholdDB: defaultThresholdDB,
		ratio:       defaultRatio,
		kneeDB:      defaultKneeDB,
		attackMs:    defaultAttackMs,
		releaseMs:   defaultReleaseMs,
		autoMakeup:  true,
		sampleRate:  sampleRate,
		lastGain:    1,
	}

	c.updateCoefficients()
	return c, nil
}

// SetThreshold sets the compression threshold in dB.
// Signals above this level are compressed. Range: -120 to 0 dB.
func (c *Compressor) SetThreshold(dB float64) error {
	if dB < minThreshDB || dB > maxThreshDB || math.IsNaN(dB) {
		return fmt.Errorf("compressor threshold must be in [%f, %f]: %f",
			minThreshDB, maxThreshDB, dB)
	}
	c.thresholdDB = dB
	c.updateCoefficients()
	return nil
}

// SetRatio sets the compression ratio. Range: 1 (no compression) to 100
// (near-limiting).
func (c *Compressor) SetRatio(ratio float64) error {
	if ratio < minRatio || ratio > maxRatio ||
		math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return fmt.Errorf("compressor ratio must be in [%f, %f]: %f",
			minRatio, maxRatio, ratio)
	}
	c.ratio = ratio
	c.updateCoefficients()
	return nil
}

// SetKnee sets the soft-knee width in dB. Range: 0 (hard knee) to 30 dB.
func (c *Compressor) SetKnee(kneeDB float64) error {
	if kneeDB < minKneeDB || kneeDB > maxKneeDB ||
		math.IsNaN(kneeDB) || math.IsInf(kneeDB, 0) {
		return fmt.Errorf("compressor knee must be in [%f, %f]: %f",
			minKneeDB, maxKneeDB, kneeDB)
	}
	c.kneeDB = kneeDB
	c.updateCoefficients()
	return nil
}

// SetAttack sets the attack time in milliseconds. Range: 0.1 to 1000 ms.
func (c *Compressor) SetAttack(ms float64) error {
	if ms < minAttackMs || ms > maxAttackMs ||
		math.IsNaN(ms) || math.IsInf(ms, 0) {
		return fmt.Errorf("compressor attack must be in [%f, %f]: %f",
			minAttackMs, maxAttackMs, ms)
	}
	c.attackMs = ms
	c.updateTimeConstants()
	return nil
}

// SetRelease sets the release time in milliseconds. Range: 1 to 5000 ms.
func (c *Compressor) SetRelease(ms float64) error {
	if ms < minReleaseMs || ms > maxReleaseMs ||
		math.IsNaN(ms) || math.IsInf(ms, 0) {
		return fmt.Errorf("compressor release must be in [%f, %f]: %f",
			minReleaseMs, maxReleaseMs, ms)
	}
	c.releaseMs = ms
	c.updateTimeConstants()
	return nil
}

// SetMakeupGain sets manual makeup gain in dB and disables auto makeup.
func (c *Compressor) SetMakeupGain(dB float64) error {
	if math.IsNaN(dB) || math.IsInf(dB, 0) {
		return fmt.Errorf("compressor makeup gain must be finite: %f", dB)
	}
	c.makeupGainDB = dB
	c.autoMakeup = false
	c.updateCoefficients()
	return nil
}

// SetAutoMakeup enables or disables automatic makeup gain. When enabled the
// makeup compensates the reduction a full-scale signal would see:
// -threshold * (1 - 1/ratio).
func (c *Compressor) SetAutoMakeup(enable bool) {
	c.autoMakeup = enable
	c.updateCoefficients()
}

// Threshold returns the current threshold in dB.
func (c *Compressor) Threshold() float64 { return c.thresholdDB }

// Ratio returns the current compression ratio.
func (c *Compressor) Ratio() float64 { return c.ratio }

// Knee returns the current knee width in dB.
func (c *Compressor) Knee() float64 { return c.kneeDB }

// Attack returns the current attack time in milliseconds.
func (c *Compressor) Attack() float64 { return c.attackMs }

// Release returns the current release time in milliseconds.
func (c *Compressor) Release() float64 { return c.releaseMs }

// MakeupGain returns the current makeup gain in dB.
func (c *Compressor) MakeupGain() float64 { return c.makeupGainDB }

// AutoMakeup reports whether automatic makeup gain is enabled.
func (c *Compressor) AutoMakeup() bool { return c.autoMakeup }

// SampleRate returns the sample rate in Hz.
func (c *Compressor) SampleRate() float64 { return c.sampleRate }

// ProcessSample processes one sample through the compressor.
func (c *Compressor) ProcessSample(input float64) float64 {
	inputLevel := math.Abs(input)

	if inputLevel > c.peakLevel {
		c.peakLevel += (inputLevel - c.peakLevel) * c.attackCoeff
	} else {
		c.peakLevel = inputLevel + (c.peakLevel-inputLevel)*c.releaseCoeff
	}

	gain := c.calculateGain(c.peakLevel)
	c.lastGain = gain

	return input * gain * c.makeupGainLin
}

// ProcessBlock applies compression to buf in place.
func (c *Compressor) ProcessBlock(buf []float64) {
	for i := range buf {
		buf[i] = c.ProcessSample(buf[i])
	}
}

// GainReductionDB returns the reduction applied to the most recent sample in
// positive dB (0 = no reduction). Makeup gain is not included.
func (c *Compressor) GainReductionDB() float64 {
	if c.lastGain >= 1 {
		return 0
	}
	return -20 * math.Log10(c.lastGain)
}

// CalculateOutputLevel computes the steady-state output level for a given
// input magnitude, which traces the static compression curve.
func (c *Compressor) CalculateOutputLevel(inputMagnitude float64) float64 {
	inputMagnitude = math.Abs(inputMagnitude)
	gain := c.calculateGain(inputMagnitude)
	return inputMagnitude * gain * c.makeupGainLin
}

// Reset clears the envelope follower.
func (c *Compressor) Reset() {
	c.peakLevel = 0
	c.lastGain = 1
}

// State returns the envelope follower state.
func (c *Compressor) State() float64 {
	return c.peakLevel
}

// SetState restores a previously saved envelope state.
func (c *Compressor) SetState(peakLevel float64) {
	if peakLevel < 0 || math.IsNaN(peakLevel) {
		peakLevel = 0
	}
	c.peakLevel = peakLevel
}

func (c *Compressor) updateCoefficients() {
	c.thresholdLog2 = c.thresholdDB * log2Of10Div20

	c.kneeWidthLog2 = c.kneeDB * log2Of10Div20
	if c.kneeDB > 0 {
		c.invKneeWidthLog2 = 1.0 / c.kneeWidthLog2
	} else {
		c.invKneeWidthLog2 = 0
	}

	if c.autoMakeup {
		reductionDB := c.thresholdDB * (1.0 - 1.0/c.ratio)
		c.makeupGainDB = -reductionDB
	}

	c.makeupGainLin = mathPower10(c.makeupGainDB / 20.0)

	c.updateTimeConstants()
}

func (c *Compressor) updateTimeConstants() {
	c.attackCoeff = 1.0 - math.Exp(-math.Ln2/(c.attackMs*0.001*c.sampleRate))
	c.releaseCoeff = math.Exp(-math.Ln2 / (c.releaseMs * 0.001 * c.sampleRate))
}

// calculateGain computes the gain multiplier using the log2-domain soft-knee
// formula: quadratic smoothing across threshold ± knee/2, full ratio above.
func (c *Compressor) calculateGain(peakLevel float64) float64 {
	if peakLevel <= 0 {
		return 1.0
	}

	peakLog2 := mathLog2(peakLevel)
	overshoot := peakLog2 - c.thresholdLog2

	if c.kneeDB <= 0 {
		if overshoot <= 0 {
			return 1.0
		}
		gainLog2 := -overshoot * (1.0 - 1.0/c.ratio)
		return mathPower2(gainLog2)
	}

	halfWidth := c.kneeWidthLog2 * 0.5

	var effectiveOvershoot float64
	switch {
	case overshoot < -halfWidth:
		return 1.0
	case overshoot > halfWidth:
		effectiveOvershoot = overshoot
	default:
		// (overshoot + w/2)^2 / (2w)
		scratch := overshoot + halfWidth
		effectiveOvershoot = scratch * scratch * 0.5 * c.invKneeWidthLog2
	}

	gainLog2 := -effectiveOvershoot * (1.0 - 1.0/c.ratio)

	return mathPower2(gainLog2)
}
