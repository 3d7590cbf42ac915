package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type State int

const (
	StateStart State = iota
	StateConnecting
	StateTransferring
	StateDone
	StateError
)

// Messages
type StatusMsg string
type ErrorMsg error
type ProgressMsg struct {
	Chunk      int // 1-based index of the chunk just answered
	Total      int
	BytesDone  int64
	BytesTotal int64
	Rate       float64 // bytes per second
}
type DoneMsg struct {
	Output string
	Bytes  int64
}

type Model struct {
	State         State
	Filename      string
	Address       string
	Output        string
	Spinner       spinner.Model
	ChunkProgress progress.Model
	ByteProgress  progress.Model
	Chunks        string
	Rate          string
	Status        string
	Err           error
	Exit          bool
}

func NewModel(filename, address string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorSecondary)

	pChunks := progress.New(
		progress.WithGradient(string(ColorPrimary), string(ColorSecondary)),
		progress.WithWidth(40),
	)
	pBytes := progress.New(
		progress.WithGradient("#00FF00", "#00FFFF"),
		progress.WithWidth(40),
	)

	return Model{
		State:         StateStart,
		Filename:      filename,
		Address:       address,
		Spinner:       s,
		ChunkProgress: pChunks,
		ByteProgress:  pBytes,
		Chunks:        "0/0",
		Rate:          "0 B/s",
	}
}

func (m Model) Init() tea.Cmd {
	return m.Spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			m.Exit = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		newChunks, cmdChunks := m.ChunkProgress.Update(msg)
		newBytes, cmdBytes := m.ByteProgress.Update(msg)
		m.ChunkProgress = newChunks.(progress.Model)
		m.ByteProgress = newBytes.(progress.Model)
		return m, tea.Batch(cmdChunks, cmdBytes)

	case StatusMsg:
		m.Status = string(msg)
		if m.State == StateStart {
			m.State = StateConnecting
		}

	case ProgressMsg:
		m.State = StateTransferring
		m.Chunks = fmt.Sprintf("%d/%d", msg.Chunk, msg.Total)
		m.Rate = FormatRate(msg.Rate)

		cmdChunks := m.ChunkProgress.SetPercent(ratio(int64(msg.Chunk), int64(msg.Total)))
		cmdBytes := m.ByteProgress.SetPercent(ratio(msg.BytesDone, msg.BytesTotal))
		return m, tea.Batch(cmdChunks, cmdBytes)

	case DoneMsg:
		m.State = StateDone
		m.Output = msg.Output
		return m, tea.Quit

	case ErrorMsg:
		m.State = StateError
		m.Err = msg
		return m, tea.Quit
	}

	return m, nil
}

func ratio(done, total int64) float64 {
	if total <= 0 {
		return 1
	}
	return float64(done) / float64(total)
}

func (m Model) View() string {
	if m.Err != nil {
		return ContainerStyle.Render(
			lipgloss.JoinVertical(lipgloss.Left,
				ErrorStyle.Render("Error Occurred"),
				fmt.Sprintf("%v", m.Err),
			),
		)
	}

	var content string

	switch m.State {
	case StateStart, StateConnecting:
		header := TitleStyle.Render("flip")
		status := StatusStyle.Render(fmt.Sprintf(">> %s", m.Status))
		content = lipgloss.JoinVertical(lipgloss.Center, header, ViewTarget(m.Filename, m.Address), m.Spinner.View(), status)

	case StateTransferring:
		header := TitleStyle.Render("Transfer In Progress")

		telemetry := lipgloss.JoinHorizontal(lipgloss.Top,
			lipgloss.JoinVertical(lipgloss.Left,
				StatLabelStyle.Render("CHUNKS"),
				ChunkValueStyle.Render(m.Chunks),
			),
			lipgloss.NewStyle().Width(4).Render(""),
			lipgloss.JoinVertical(lipgloss.Left,
				StatLabelStyle.Render("RATE"),
				StatValueStyle.Render(m.Rate),
			),
			lipgloss.NewStyle().Width(4).Render(""),
			lipgloss.JoinVertical(lipgloss.Left,
				StatLabelStyle.Render("SERVER"),
				StatValueStyle.Render(m.Address),
			),
		)

		bars := lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.JoinHorizontal(lipgloss.Bottom, StatLabelStyle.Render("Chunks"), m.ChunkProgress.View()),
			" ",
			lipgloss.JoinHorizontal(lipgloss.Bottom, StatLabelStyle.Render("Bytes"), m.ByteProgress.View()),
		)

		content = lipgloss.JoinVertical(lipgloss.Center, header, telemetry, " ", bars)

	case StateDone:
		content = lipgloss.JoinVertical(lipgloss.Center,
			TitleStyle.Render("Transfer Complete!"),
			StatusStyle.Render("Written to")+" "+OutputStyle.Render(m.Output),
		)
	}

	return ContainerStyle.Render(content)
}

// FormatRate renders bytes per second.
func FormatRate(bps float64) string {
	switch {
	case bps >= 1<<20:
		return fmt.Sprintf("%.2f MB/s", bps/(1<<20))
	case bps >= 1<<10:
		return fmt.Sprintf("%.1f KB/s", bps/(1<<10))
	default:
		return fmt.Sprintf("%.0f B/s", bps)
	}
}

// Rate is a helper for ProgressMsg.
func Rate(bytes int64, since time.Time) float64 {
	el := time.Since(since).Seconds()
	if el <= 0 {
		return 0
	}
	return float64(bytes) / el
}
