package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/demsim/internal/metrics"
	"github.com/san-kum/demsim/internal/sim"
)

const (
	canvasWidth  = 60
	canvasHeight = 20
	frameRate    = 15
	historyWidth = 40
)

type TickMsg time.Time

// DoneMsg carries the outcome of the watched run.
type DoneMsg struct {
	Result *sim.Result
	Err    error
}

// LiveModel watches a run in progress. The run itself steps on its own
// goroutine; the model only reads the recorder.
type LiveModel struct {
	title    string
	device   string
	job      *sim.Job
	rec      *metrics.Recorder
	limits   sim.RunConfig
	canvas   *Canvas
	frame    int
	showHelp bool
	result   *sim.Result
	err      error
	done     bool
}

func NewLiveModel(title, device string, job *sim.Job, rec *metrics.Recorder, limits sim.RunConfig) LiveModel {
	return LiveModel{
		title:  title,
		device: device,
		job:    job,
		rec:    rec,
		limits: limits,
		canvas: NewCanvas(canvasWidth, canvasHeight),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m LiveModel) wait() tea.Msg {
	res, err := m.job.Wait()
	return DoneMsg{Result: res, Err: err}
}

func (m LiveModel) Init() tea.Cmd {
	return tea.Batch(tick(), m.wait)
}

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.job.Stop()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		m.frame++
		if m.done {
			return m, nil
		}
		return m, tick()
	case DoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

// Result is the outcome once the run has finished.
func (m LiveModel) Result() (*sim.Result, error) { return m.result, m.err }

func (m LiveModel) progress(s metrics.Sample) (float64, bool) {
	switch {
	case m.limits.MaxSteps > 0:
		return float64(s.Step) / float64(m.limits.MaxSteps), true
	case m.limits.EndTime > 0:
		return s.T / m.limits.EndTime, true
	}
	return 0, false
}

func (m LiveModel) status() string {
	switch {
	case m.err != nil:
		return StatusFailed.Render("FAILED: " + m.err.Error())
	case m.done && m.result != nil && m.result.Stopped:
		return StatusStopped.Render("STOPPED")
	case m.done:
		return StatusRunning.Render("DONE")
	}
	return StatusRunning.Render(AnimatedSpinner(m.frame) + " RUNNING")
}

func (m LiveModel) View() string {
	m.canvas.Clear()
	if f := m.rec.LastFrame(); f != nil {
		m.canvas.Scatter(f.Particles, Fit(f.Particles))
	}
	canvasView := canvasStyle.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(m.status() + "\n\n")

	latest, ok := m.rec.Latest()
	if p, bounded := m.progress(latest); bounded {
		s.WriteString(ProgressBar(p, 30) + fmt.Sprintf(" %3.0f%%\n\n", 100*p))
	}

	energy := m.rec.Series(func(s metrics.Sample) float64 { return s.KineticEnergy })
	if len(energy) > historyWidth {
		energy = energy[len(energy)-historyWidth:]
	}
	if len(energy) > 1 {
		chart := asciigraph.Plot(energy, asciigraph.Height(5), asciigraph.Width(30), asciigraph.Caption("Kinetic energy"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Device", m.device)
	if ok {
		row("Time", fmt.Sprintf("%.4fs", latest.T))
		row("Step", fmt.Sprintf("%d", latest.Step))
		row("Dt", fmt.Sprintf("%.3e", latest.Dt))
		row("Particles", fmt.Sprintf("%d", latest.Particles))
		row("Energy", fmt.Sprintf("%.4g J", latest.KineticEnergy))
		row("Max speed", fmt.Sprintf("%.4g m/s", latest.MaxSpeed))
		row("Contacts", fmt.Sprintf("%d", latest.Contacts))
		dts := m.rec.Series(func(s metrics.Sample) float64 { return s.Dt })
		s.WriteString(labelStyle.Render("Dt history") + SparklineChart(dts, 24) + "\n")
	} else {
		row("Time", "waiting for first sample")
	}

	s.WriteString(helpStyle.Render("\n" + Separator(30) + "\nQ:Stop  ?:Help"))
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Q        - Stop the run             ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}

// RunLive shows m until the watched run finishes or the user stops it.
func RunLive(m LiveModel) (*sim.Result, error) {
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		m.job.Stop()
		m.job.Wait()
		return nil, err
	}
	return final.(LiveModel).Result()
}
