package main

import (
	"fmt"
	"strings"

	"github.com/LoganthP/EarVan/enhance"
)

// Built-in hearing profiles. A deployment would load these from a
// fitting session; the built-ins cover the common starting points.
var builtinProfiles = []*enhance.HearingProfile{
	{
		Name:        "flat",
		Class:       enhance.ClassGeneric,
		BandGainsDB: map[int]float64{},
	},
	{
		Name:        "mild",
		Class:       enhance.ClassMildLoss,
		BandGainsDB: map[int]float64{4000: 3, 8000: 4},
	},
	{
		Name:        "speech",
		Class:       enhance.ClassSpeechFocus,
		BandGainsDB: map[int]float64{2000: 4},
	},
	{
		Name:        "balanced",
		Class:       enhance.ClassBalanced,
		BandGainsDB: map[int]float64{500: -2, 8000: 2},
	},
}

func profileNames() []string {
	names := make([]string, len(builtinProfiles))
	for i, p := range builtinProfiles {
		names[i] = p.Name
	}
	return names
}

func profileByName(name string) (*enhance.HearingProfile, error) {
	for _, p := range builtinProfiles {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(profileNames(), ", "))
}

// nextProfile cycles through the built-ins, for the live display's
// profile key.
func nextProfile(current *enhance.HearingProfile) *enhance.HearingProfile {
	for i, p := range builtinProfiles {
		if p == current {
			return builtinProfiles[(i+1)%len(builtinProfiles)]
		}
	}
	return builtinProfiles[0]
}

// ProfilesCmd lists the built-in profiles with their per-band gains.
type ProfilesCmd struct{}

func (ProfilesCmd) Run() error {
	fmt.Printf("%-10s %-13s", "profile", "class")
	for _, band := range enhance.CanonicalBands {
		fmt.Printf(" %9s", formatBand(band))
	}
	fmt.Println()

	for _, p := range builtinProfiles {
		class := p.EffectiveClass()
		fmt.Printf("%-10s %-13s", p.Name, class)
		for _, band := range enhance.CanonicalBands {
			total := p.BandGainsDB[band] + enhance.ClassBoostDB(class, band)
			fmt.Printf(" %+7.1fdB", total)
		}
		fmt.Println()
	}
	fmt.Println("\nBand gains shown include the class boost applied by the resolver.")
	return nil
}

func formatBand(hz int) string {
	if hz >= 1000 {
		return fmt.Sprintf("%dk", hz/1000)
	}
	return fmt.Sprintf("%d", hz)
}
