package main

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/LoganthP/EarVan/enhance"
)

// tickMsg drives the meter refresh.
type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// restartMsg reports the restart that acquires a not-yet-opened live
// source after a source switch.
type restartMsg struct{ err error }

func restartCmd(eng *enhance.Engine) tea.Cmd {
	return func() tea.Msg {
		if err := eng.Suspend(); err != nil {
			return restartMsg{err}
		}
		return restartMsg{eng.Start(context.Background())}
	}
}

// liveModel is the Bubbletea model for the live enhancement view. The
// engine handle is shared with the audio loop; every control key maps
// to one engine call and the tick polls the readouts.
type liveModel struct {
	eng     *enhance.Engine
	meters  *liveMeters
	profile *enhance.HearingProfile

	spectrum  []float64
	gr        float64
	momentary float64
	peak      float64
	state     enhance.State
	mode      enhance.EnvironmentMode
	bypass    bool
	volume    float64
	test      bool
	ctrlErr   string

	width  int
	height int
}

func newLiveModel(eng *enhance.Engine, meters *liveMeters, prof *enhance.HearingProfile) liveModel {
	return liveModel{
		eng:      eng,
		meters:   meters,
		profile:  prof,
		spectrum: make([]float64, eng.SpectrumBins()),
		state:    eng.State(),
		mode:     eng.Mode(),
		volume:   eng.MasterVolume(),
	}
}

func (m liveModel) Init() tea.Cmd {
	return tickCmd()
}

func (m liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case restartMsg:
		if msg.err != nil {
			m.ctrlErr = msg.err.Error()
		}

	case tickMsg:
		m.eng.Spectrum(m.spectrum)
		m.gr = m.eng.GainReductionDB()
		m.state = m.eng.State()
		m.mode = m.eng.Mode()
		m.bypass = m.eng.Bypass()
		m.volume = m.eng.MasterVolume()
		m.test = m.eng.TestSourceActive()
		m.momentary = m.meters.momentary()
		m.peak = m.meters.peak()
		return m, tickCmd()
	}

	return m, nil
}

func (m liveModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var err error
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case " ":
		if m.eng.Running() {
			err = m.eng.Suspend()
		} else {
			err = m.eng.Start(context.Background())
		}

	case "b":
		err = m.eng.SetBypass(!m.eng.Bypass())

	case "m":
		err = m.eng.SetMode(nextMode(m.eng.Mode()))

	case "p":
		m.profile = nextProfile(m.profile)
		err = m.eng.SetProfile(m.profile)

	case "t":
		if m.eng.TestSourceActive() {
			err = m.eng.UseLiveSource()
			if err == nil && !m.eng.LiveSourceAcquired() {
				// Acquisition happens on Start; cycle off the UI loop
				// so a slow permission prompt cannot freeze the view.
				m.ctrlErr = ""
				return m, restartCmd(m.eng)
			}
		} else {
			err = m.eng.UseTestSource()
		}

	case "+", "=":
		err = m.eng.SetMasterVolume(math.Min(m.eng.MasterVolume()+0.05, 2))

	case "-":
		err = m.eng.SetMasterVolume(math.Max(m.eng.MasterVolume()-0.05, 0))
	}

	if err != nil {
		m.ctrlErr = err.Error()
	} else {
		m.ctrlErr = ""
	}
	return m, nil
}

func nextMode(m enhance.EnvironmentMode) enhance.EnvironmentMode {
	switch m {
	case enhance.ModeQuiet:
		return enhance.ModeConversation
	case enhance.ModeConversation:
		return enhance.ModeNoisy
	default:
		return enhance.ModeQuiet
	}
}

func (m liveModel) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(renderLiveHeader(m))
	b.WriteString("\n\n")
	b.WriteString(renderSpectrum(m))
	b.WriteString("\n")
	b.WriteString(renderMeters(m))
	b.WriteString("\n")
	b.WriteString(renderStatus(m))
	b.WriteString("\n\n")
	b.WriteString(keyStyle.Render(
		"space pause · b bypass · m mode · p profile · t test noise · +/- volume · q quit"))
	if m.ctrlErr != "" {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render("! " + m.ctrlErr))
	}
	return b.String()
}

func renderLiveHeader(m liveModel) string {
	badge := m.state.String()
	style := okColor
	switch m.state {
	case enhance.StateSuspended:
		style = warnColor
	case enhance.StateDestroyed, enhance.StateUninitialized:
		style = alertColor
	}
	return titleStyle.Render("EarVan Live") + "  " + renderBadge(badge, style)
}

// renderSpectrum draws the enhanced-output spectrum as one bar per
// frequency band group, on a dB scale from -60 to 0.
func renderSpectrum(m liveModel) string {
	cols := m.width - 4
	if cols > 64 {
		cols = 64
	}
	if cols < 8 {
		cols = 8
	}

	glyphs := []rune("▁▂▃▄▅▆▇█")
	bins := len(m.spectrum)
	perCol := (bins + cols - 1) / cols

	var bar strings.Builder
	for c := 0; c < cols; c++ {
		lo := c * perCol
		if lo >= bins {
			break
		}
		hi := lo + perCol
		if hi > bins {
			hi = bins
		}
		var peak float64
		for _, v := range m.spectrum[lo:hi] {
			if v > peak {
				peak = v
			}
		}
		bar.WriteRune(glyphs[spectrumLevel(peak, len(glyphs))])
	}

	return keyStyle.Render("Spectrum ") + "\n " + valueStyle.Render(bar.String())
}

// spectrumLevel maps a normalized magnitude onto n glyph steps over a
// 60 dB range. Zero magnitude maps to the lowest step.
func spectrumLevel(v float64, n int) int {
	if v <= 0 {
		return 0
	}
	db := 20 * math.Log10(v)
	if db < -60 {
		db = -60
	}
	if db > 0 {
		db = 0
	}
	idx := int((db + 60) / 60 * float64(n-1))
	if idx >= n {
		idx = n - 1
	}
	return idx
}

func renderMeters(m liveModel) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(" %s %s %s\n",
		keyStyle.Render("Loudness "),
		meterBar(m.momentary, -60, 0, 30),
		valueStyle.Render(fmt.Sprintf("%6.1f LUFS", m.momentary))))
	b.WriteString(fmt.Sprintf(" %s %s %s",
		keyStyle.Render("Gain red."),
		meterBar(m.gr, 0, 24, 30),
		valueStyle.Render(fmt.Sprintf("%5.1f dB", m.gr))))
	return b.String()
}

// meterBar renders a fixed-width level bar mapping [lo, hi] to the
// filled portion.
func meterBar(v, lo, hi float64, width int) string {
	frac := (v - lo) / (hi - lo)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func renderStatus(m liveModel) string {
	source := "live"
	if m.test {
		source = "test noise"
	}
	bypass := "off"
	if m.bypass {
		bypass = "ON (muted)"
	}
	lines := fmt.Sprintf("Profile %s   Mode %s   Volume %.2f\nSource  %s   Bypass %s   Peak %.2f",
		m.profile.Name, m.mode, m.volume, source, bypass, m.peak)
	return boxStyle.Render(lines)
}
