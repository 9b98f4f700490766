package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"fencecheck/internal/engine"
)

// maxVisible keeps the job list to one screen; finished jobs scroll away first.
const maxVisible = 20

type progressModel struct {
	title    string
	events   <-chan engine.Event
	spinner  spinner.Model
	prog     progress.Model
	items    []jobItem
	index    map[string]int
	finished int
	failed   int
	width    int
	done     bool
}

type jobItem struct {
	name   string
	status string
	stage  engine.Stage
	final  bool
}

type eventMsg engine.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders compile job progress.
func NewProgressModel(title string, jobs []string, events <-chan engine.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]jobItem, 0, len(jobs))
	index := make(map[string]int, len(jobs))
	for i, name := range jobs {
		items = append(items, jobItem{name: name, status: "queued", stage: engine.StagePlan})
		index[name] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(engine.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case tea.KeyMsg:
		// прерывание отдаём наружу: движок сам пометит оставшиеся задачи
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := fmt.Sprintf("%s  %d/%d", m.title, m.finished, len(m.items))
	if m.failed > 0 {
		header += lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(fmt.Sprintf("  %d failed", m.failed))
	}
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 12
	nameWidth := max(m.width-statusWidth-4, 20)
	for _, item := range m.visible() {
		statusStyled := styleStatus(item.status).Render(fmt.Sprintf("%12s", item.status))
		b.WriteString(fmt.Sprintf("  %s %s\n", statusStyled, truncate(item.name, nameWidth)))
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

// visible prefers running and queued jobs over finished ones.
func (m *progressModel) visible() []jobItem {
	if len(m.items) <= maxVisible {
		return m.items
	}
	out := make([]jobItem, 0, maxVisible)
	for _, item := range m.items {
		if !item.final && len(out) < maxVisible {
			out = append(out, item)
		}
	}
	for i := len(m.items) - 1; i >= 0 && len(out) < maxVisible; i-- {
		if m.items[i].final {
			out = append(out, m.items[i])
		}
	}
	return out
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev engine.Event) tea.Cmd {
	if ev.Job == "" {
		return nil
	}
	idx, ok := m.index[ev.Job]
	if !ok {
		// план мог вырасти после старта модели
		idx = len(m.items)
		m.items = append(m.items, jobItem{name: ev.Job})
		m.index[ev.Job] = idx
	}
	item := &m.items[idx]
	if item.final {
		return nil
	}
	item.stage = ev.Stage
	item.status = statusLabel(ev.Stage, ev.Status)
	switch ev.Status {
	case engine.StatusDone, engine.StatusFailed, engine.StatusSkipped, engine.StatusCached:
		item.final = true
		m.finished++
		if ev.Status == engine.StatusFailed {
			m.failed++
		}
	}

	if len(m.items) == 0 {
		return nil
	}
	total := 0.0
	for _, it := range m.items {
		if it.final {
			total += 1.0
		} else {
			total += progressFromStage(it.stage, it.status)
		}
	}
	return m.prog.SetPercent(total / float64(len(m.items)))
}

func progressFromStage(stage engine.Stage, status string) float64 {
	if status == "queued" {
		return 0
	}
	switch stage {
	case engine.StageMaterialize:
		return 0.2
	case engine.StageCompile:
		return 0.6
	default:
		return 0
	}
}

func statusLabel(stage engine.Stage, status engine.Status) string {
	switch status {
	case engine.StatusQueued:
		return "queued"
	case engine.StatusDone:
		return "passed"
	case engine.StatusFailed:
		return "failed"
	case engine.StatusSkipped:
		return "skipped"
	case engine.StatusCached:
		return "cached"
	case engine.StatusWorking:
		return stageLabel(stage)
	default:
		return ""
	}
}

func stageLabel(stage engine.Stage) string {
	switch stage {
	case engine.StageMaterialize:
		return "preparing"
	case engine.StageCompile:
		return "compiling"
	default:
		return "working"
	}
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "passed", "cached":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "failed":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "skipped":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	case "preparing", "compiling", "working":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
