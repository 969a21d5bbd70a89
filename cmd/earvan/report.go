package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/LoganthP/EarVan/measure/levels"
)

// renderReport collects the numbers shown after a file render.
type renderReport struct {
	inPath  string
	outPath string
	in      levels.Summary
	out     levels.Summary
	inLUFS  float64
	outLUFS float64
	maxGR   float64
	profile string
	mode    string
}

func printRenderReport(r renderReport) {
	fmt.Println(titleStyle.Render("EarVan") + " " +
		keyStyle.Render(filepath.Base(r.inPath)+" → "+filepath.Base(r.outPath)))
	fmt.Printf("%s %s   %s %s\n",
		keyStyle.Render("Profile:"), valueStyle.Render(r.profile),
		keyStyle.Render("Mode:"), valueStyle.Render(r.mode))

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Input:  %s | Peak %s | RMS %s | Crest %s\n",
		lufsCell(r.inLUFS), dbCell(r.in.PeakDB), dbCell(r.in.RMSDB), dbCell(r.in.CrestDB)))
	b.WriteString(fmt.Sprintf("Output: %s | Peak %s | RMS %s | Crest %s\n",
		lufsCell(r.outLUFS), dbCell(r.out.PeakDB), dbCell(r.out.RMSDB), dbCell(r.out.CrestDB)))
	b.WriteString(fmt.Sprintf("Δ %+.1f dB loudness | max gain reduction %.1f dB",
		r.outLUFS-r.inLUFS, r.maxGR))
	fmt.Println(boxStyle.Render(b.String()))

	if r.out.Clipped > 0 {
		fmt.Println(warnStyle.Render(
			fmt.Sprintf("! %d output samples clipped; consider lowering --volume", r.out.Clipped)))
	}
}

func lufsCell(v float64) string { return fmt.Sprintf("%6.1f LUFS", v) }

func dbCell(v float64) string { return fmt.Sprintf("%+6.1f dB", v) }
