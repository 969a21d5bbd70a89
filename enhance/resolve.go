package enhance

import "github.com/LoganthP/EarVan/dsp/core"

// Combined band gain range after profile + class boost + mode offset.
const (
	bandGainMinDB = -18.0
	bandGainMaxDB = 18.0
)

// ResolvedParams is the concrete per-stage target record the resolver
// produces and the signal graph ramps toward.
type ResolvedParams struct {
	// HighpassHz is the high-pass cutoff; HighpassDisabledHz disables
	// the stage.
	HighpassHz float64

	// BandGainsDB holds the five EQ gains in ascending canonical band
	// order, each clamped to [-18, +18] dB.
	BandGainsDB [NumBands]float64

	// GainOffset multiplies the master volume. 1 is unity; the bypass
	// record forces 0, muting the enhanced output.
	GainOffset float64

	ThresholdDB float64
	Ratio       float64
}

// BypassParams returns the inert record bypass resolves to: flat EQ,
// high-pass disabled, compressor at threshold 0 dB / ratio 1, master
// gain zero. It is also the power-on state of the signal graph.
func BypassParams() ResolvedParams {
	return ResolvedParams{
		HighpassHz: HighpassDisabledHz,
		GainOffset: 0,
		Ratio:      1,
	}
}

// Resolve maps a hearing profile, an environment mode and the bypass
// flag to the chain's target parameters. It is pure: no side effects,
// identical inputs produce identical output.
//
// When bypass is set the profile and mode are ignored and the bypass
// record is returned. Otherwise each band resolves to
//
//	clamp(profile gain + class boost + mode offset, -18, +18) dB
//
// with missing map entries contributing 0. A nil profile contributes
// zero gains and the generic (boost-free) class.
func Resolve(profile *HearingProfile, mode EnvironmentMode, bypass bool) ResolvedParams {
	if bypass {
		return BypassParams()
	}

	preset, ok := environmentPresets[mode]
	if !ok {
		preset = environmentPresets[ModeQuiet]
	}

	out := ResolvedParams{
		HighpassHz:  preset.highpassHz,
		GainOffset:  1 + preset.gainDelta,
		ThresholdDB: preset.thresholdDB,
		Ratio:       preset.ratio,
	}

	var profileGains map[int]float64
	if profile != nil {
		profileGains = profile.BandGainsDB
	}
	boosts := classBoostsDB[profile.EffectiveClass()]

	for i, band := range CanonicalBands {
		total := profileGains[band] + boosts[band] + preset.eqOffsetsDB[band]
		out.BandGainsDB[i] = core.Clamp(total, bandGainMinDB, bandGainMaxDB)
	}
	return out
}
