package enhance

import "fmt"

// EnvironmentMode selects one of the fixed listening presets.
type EnvironmentMode int

const (
	ModeQuiet EnvironmentMode = iota
	ModeConversation
	ModeNoisy
)

func (m EnvironmentMode) String() string {
	switch m {
	case ModeQuiet:
		return "quiet"
	case ModeConversation:
		return "conversation"
	case ModeNoisy:
		return "noisy"
	default:
		return fmt.Sprintf("EnvironmentMode(%d)", int(m))
	}
}

// ParseMode converts a mode name as produced by String back to its
// EnvironmentMode value.
func ParseMode(s string) (EnvironmentMode, error) {
	switch s {
	case "quiet":
		return ModeQuiet, nil
	case "conversation":
		return ModeConversation, nil
	case "noisy":
		return ModeNoisy, nil
	default:
		return 0, fmt.Errorf("enhance: unknown environment mode %q", s)
	}
}

// HighpassDisabledHz is the sentinel cutoff meaning the high-pass stage
// is disabled (passthrough).
const HighpassDisabledHz = 1.0

// environmentPreset is the static per-mode configuration. Presets are
// never mutated at runtime.
type environmentPreset struct {
	gainDelta   float64
	eqOffsetsDB map[int]float64
	highpassHz  float64
	thresholdDB float64
	ratio       float64
}

var environmentPresets = map[EnvironmentMode]environmentPreset{
	ModeQuiet: {
		gainDelta:   0.0,
		eqOffsetsDB: map[int]float64{},
		highpassHz:  HighpassDisabledHz,
		thresholdDB: -50,
		ratio:       2,
	},
	ModeConversation: {
		gainDelta:   0.1,
		eqOffsetsDB: map[int]float64{1000: 3, 2000: 8, 4000: 3},
		highpassHz:  100,
		thresholdDB: -40,
		ratio:       3,
	},
	ModeNoisy: {
		gainDelta:   0.2,
		eqOffsetsDB: map[int]float64{500: -3, 2000: 4, 4000: 3, 8000: -2},
		highpassHz:  160,
		thresholdDB: -30,
		ratio:       4,
	},
}

// validMode reports whether m is one of the defined environment modes.
func validMode(m EnvironmentMode) bool {
	_, ok := environmentPresets[m]
	return ok
}
