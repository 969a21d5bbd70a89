package enhance

import (
	"fmt"
	"strings"
)

// NumBands is the number of EQ bands in the chain.
const NumBands = 5

// CanonicalBands lists the fixed EQ band center frequencies in Hz,
// ascending. The band bank is always configured in this order.
var CanonicalBands = [NumBands]int{500, 1000, 2000, 4000, 8000}

// Per-band gain range a profile may request. The resolver's combined
// output is clamped to the wider [-18, +18] dB range.
const (
	profileGainMinDB = -12.0
	profileGainMaxDB = 12.0
)

// ProfileClass identifies the boost table the resolver adds on top of a
// profile's own band gains. The zero value defers to name-based
// classification.
type ProfileClass int

const (
	ClassUnspecified ProfileClass = iota
	ClassGeneric
	ClassMildLoss
	ClassSpeechFocus
	ClassBalanced
)

func (c ProfileClass) String() string {
	switch c {
	case ClassUnspecified:
		return "unspecified"
	case ClassGeneric:
		return "generic"
	case ClassMildLoss:
		return "mild-loss"
	case ClassSpeechFocus:
		return "speech-focus"
	case ClassBalanced:
		return "balanced"
	default:
		return fmt.Sprintf("ProfileClass(%d)", int(c))
	}
}

// ClassifyName infers a profile class from a profile name by
// case-insensitive keyword match. Names matching none of the keywords
// classify as generic, which carries no boost.
func ClassifyName(name string) ProfileClass {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "mild"):
		return ClassMildLoss
	case strings.Contains(n, "speech"):
		return ClassSpeechFocus
	case strings.Contains(n, "balanced"):
		return ClassBalanced
	default:
		return ClassGeneric
	}
}

// HearingProfile is an immutable value object describing a user's
// per-band gain preferences. The engine never mutates a profile;
// callers replace it wholesale.
type HearingProfile struct {
	Name  string
	Class ProfileClass

	// BandGainsDB maps a canonical band frequency in Hz to a gain in
	// [-12, +12] dB. Missing bands are 0 dB.
	BandGainsDB map[int]float64
}

// EffectiveClass returns the explicitly set class, or the class
// inferred from the profile name when Class is ClassUnspecified.
func (p *HearingProfile) EffectiveClass() ProfileClass {
	if p == nil {
		return ClassGeneric
	}
	if p.Class != ClassUnspecified {
		return p.Class
	}
	return ClassifyName(p.Name)
}

// Validate reports whether the profile's band gains are well formed:
// every key must be a canonical band and every gain within [-12, +12] dB.
func (p *HearingProfile) Validate() error {
	if p == nil {
		return nil
	}
	for band, gain := range p.BandGainsDB {
		if !isCanonicalBand(band) {
			return fmt.Errorf("enhance: profile %q: %d Hz is not a canonical band", p.Name, band)
		}
		if gain < profileGainMinDB || gain > profileGainMaxDB {
			return fmt.Errorf("enhance: profile %q: gain %g dB at %d Hz outside [%g, %g]",
				p.Name, gain, band, profileGainMinDB, profileGainMaxDB)
		}
	}
	return nil
}

func isCanonicalBand(freq int) bool {
	for _, b := range CanonicalBands {
		if b == freq {
			return true
		}
	}
	return false
}

// classBoostsDB holds the per-class dB added by the resolver on top of
// the profile's own band gains. Bands absent from a table contribute 0.
var classBoostsDB = map[ProfileClass]map[int]float64{
	ClassMildLoss:    {2000: 2, 4000: 4, 8000: 6},
	ClassSpeechFocus: {1000: 3, 2000: 8, 4000: 5},
	ClassBalanced:    {500: 2, 1000: 2, 2000: 2, 4000: 2, 8000: 2},
}

// ClassBoostDB returns the resolver's boost for class c at the given
// band frequency.
func ClassBoostDB(c ProfileClass, band int) float64 {
	return classBoostsDB[c][band]
}
