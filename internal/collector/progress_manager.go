package collector

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	progressbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ProgressManager renders collection progress with Bubble Tea: one task
// per channel counting transcribed videos, plus transient byte tasks for
// audio downloads.
type ProgressManager struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	program *tea.Program
	started bool
	done    chan struct{}
}

func NewProgressManager() *ProgressManager {
	return &ProgressManager{}
}

// Start begins the progress rendering in a separate goroutine.
func (pm *ProgressManager) Start(ctx context.Context) {
	if pm == nil {
		return
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.started {
		return
	}

	model := newProgressModel()
	opts := []tea.ProgramOption{
		tea.WithOutput(os.Stderr),
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	}
	program := tea.NewProgram(model, opts...)

	pm.ctx, pm.cancel = context.WithCancel(ctx)
	pm.program = program
	pm.started = true
	pm.done = make(chan struct{})

	go func() {
		defer close(pm.done)
		_, _ = program.Run()
		if pm.cancel != nil {
			pm.cancel()
		}
	}()

	go func() {
		<-pm.ctx.Done()
		pm.send(stopMsg{})
	}()
}

// Stop stops the progress rendering and waits for it to finish.
func (pm *ProgressManager) Stop() {
	if pm == nil {
		return
	}

	pm.mu.Lock()
	program := pm.program
	done := pm.done
	pm.mu.Unlock()

	if program != nil {
		program.Send(stopMsg{})
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}
}

// Log enqueues a message to be rendered above the progress bars.
func (pm *ProgressManager) Log(level LogLevel, msg string) {
	if pm == nil || msg == "" {
		return
	}
	pm.send(logMsg{level: level, text: msg})
}

// Renderer returns the handle printers and writers report through.
func (pm *ProgressManager) Renderer() ProgressRenderer {
	if pm == nil {
		return nil
	}
	return &tuiRenderer{manager: pm}
}

func (pm *ProgressManager) send(msg tea.Msg) {
	if pm == nil {
		return
	}
	pm.mu.Lock()
	program := pm.program
	pm.mu.Unlock()
	if program != nil {
		program.Send(msg)
	}
}

// tuiRenderer feeds the Bubble Tea program.
type tuiRenderer struct {
	manager *ProgressManager
}

var _ ProgressRenderer = (*tuiRenderer)(nil)

func (pr *tuiRenderer) Register(prefix string, total int64, unit TaskUnit) string {
	if pr == nil || pr.manager == nil {
		return ""
	}
	id := fmt.Sprintf("%s@%d", prefix, time.Now().UnixNano())
	pr.manager.send(registerMsg{
		id:    id,
		label: prefix,
		total: total,
		unit:  unit,
		start: time.Now(),
	})
	return id
}

func (pr *tuiRenderer) Update(id string, current, total int64) {
	if pr == nil || pr.manager == nil {
		return
	}
	pr.manager.send(updateMsg{id: id, current: current, total: total})
}

func (pr *tuiRenderer) Finish(id string) {
	if pr == nil || pr.manager == nil {
		return
	}
	pr.manager.send(finishMsg{id: id})
}

func (pr *tuiRenderer) Log(level LogLevel, msg string) {
	if pr == nil || pr.manager == nil {
		return
	}
	pr.manager.Log(level, msg)
}

type registerMsg struct {
	id    string
	label string
	total int64
	unit  TaskUnit
	start time.Time
}

type updateMsg struct {
	id      string
	current int64
	total   int64
}

type finishMsg struct {
	id string
}

type logMsg struct {
	level LogLevel
	text  string
}

type stopMsg struct{}

// Styles following Bubble Tea examples
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0B0B0B")).
			Background(lipgloss.Color("#FFE66D")).
			Bold(true).
			Padding(0, 1)

	percentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00F5D4")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8F8F2")).
			Bold(true)

	progressBarStyle = lipgloss.NewStyle().
				Bold(true)

	etaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6ADC8")).
			Faint(true)

	logInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7FDBFF")).
			Bold(true)

	logWarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD166")).
			Bold(true)

	logErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FDBFF"))
)

type progressModel struct {
	tasks   map[string]*progressTask
	order   []string
	width   int
	height  int
	quit    bool
	log     string
	vp      viewport.Model
	vpReady bool
}

type progressTask struct {
	id       string
	label    string
	total    int64
	current  int64
	unit     TaskUnit
	started  time.Time
	finished time.Time
	percent  float64
	bar      progressbar.Model
	spin     spinner.Model
	done     bool
}

func newProgressModel() *progressModel {
	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true
	vp.Style = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#7FDBFF"))
	return &progressModel{
		tasks:  make(map[string]*progressTask),
		order:  make([]string, 0),
		width:  80,
		height: 24,
		vp:     vp,
	}
}

func barWidth(total int) int {
	width := total - 10
	if width < 10 {
		return 10
	}
	return width
}

func truncateLine(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}
	if width <= 3 {
		return text[:width]
	}
	return text[:width-3] + "..."
}

func (m *progressModel) Init() tea.Cmd {
	return nil
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 2
		borderHeight := 2
		m.vp.Width = msg.Width - 2
		m.vp.Height = msg.Height - headerHeight - borderHeight
		m.vp, _ = m.vp.Update(msg)
		m.vpReady = true
		for _, task := range m.tasks {
			task.bar.Width = barWidth(m.width)
		}
	case registerMsg:
		if _, exists := m.tasks[msg.id]; exists {
			return m, nil
		}
		m.order = append(m.order, msg.id)
		spin := spinner.New()
		spin.Spinner = spinner.MiniDot
		spin.Style = spinnerStyle
		bar := progressbar.New(
			progressbar.WithGradient("#FF006E", "#00F5FF"),
			progressbar.WithWidth(barWidth(m.width)),
			progressbar.WithoutPercentage(),
		)
		task := &progressTask{
			id:      msg.id,
			label:   msg.label,
			total:   msg.total,
			unit:    msg.unit,
			started: msg.start,
			bar:     bar,
			spin:    spin,
		}
		m.tasks[msg.id] = task
		return m, tea.Batch(task.bar.SetPercent(0), task.spin.Tick)
	case updateMsg:
		if task, ok := m.tasks[msg.id]; ok {
			task.current = msg.current
			if msg.total > 0 {
				task.total = msg.total
			}
			if task.total > 0 {
				task.percent = math.Min(1, math.Max(0, float64(task.current)/float64(task.total)))
				return m, task.bar.SetPercent(task.percent)
			}
		}
	case finishMsg:
		if task, ok := m.tasks[msg.id]; ok {
			task.percent = 1
			task.done = true
			task.finished = time.Now()
			return m, task.bar.SetPercent(1)
		}
	case logMsg:
		var style lipgloss.Style
		switch msg.level {
		case LogError:
			style = logErrorStyle
		case LogWarn:
			style = logWarnStyle
		default:
			style = logInfoStyle
		}
		m.log = style.Render(truncateLine(msg.text, m.width))
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			m.vp.SetYOffset(m.vp.YOffset - 1)
		case "down", "j":
			m.vp.SetYOffset(m.vp.YOffset + 1)
		case "pgup":
			m.vp.HalfViewUp()
		case "pgdown", "f", " ":
			m.vp.HalfViewDown()
		case "home", "g":
			m.vp.GotoTop()
		case "end", "G":
			m.vp.GotoBottom()
		}
		return m, nil
	case progressbar.FrameMsg:
		cmds := make([]tea.Cmd, 0, len(m.tasks))
		for _, task := range m.tasks {
			if task == nil {
				continue
			}
			model, cmd := task.bar.Update(msg)
			if updated, ok := model.(progressbar.Model); ok {
				task.bar = updated
			}
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		return m, tea.Batch(cmds...)
	case spinner.TickMsg:
		cmds := make([]tea.Cmd, 0, len(m.tasks))
		for _, task := range m.tasks {
			if task == nil {
				continue
			}
			updated, cmd := task.spin.Update(msg)
			task.spin = updated
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		return m, tea.Batch(cmds...)
	case stopMsg:
		m.quit = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *progressModel) View() string {
	if m.quit {
		return ""
	}

	var b strings.Builder

	if m.log != "" {
		b.WriteString(m.log)
		b.WriteString("\n")
	}

	if len(m.order) > 0 {
		var taskContent strings.Builder
		for _, id := range m.order {
			task, ok := m.tasks[id]
			if !ok {
				continue
			}

			var elapsed time.Duration
			var eta time.Duration

			if task.done {
				elapsed = task.finished.Sub(task.started)
				eta = 0
			} else {
				elapsed = time.Since(task.started)
				eta = estimateETA(task.current, task.total, elapsed)
			}

			percentText := percentStyle.Render(fmt.Sprintf("%5.1f%%", task.percent*100))
			labelText := labelStyle.Render(task.label)

			spinText := ""
			if !task.done {
				spinText = task.spin.View()
				if spinText != "" {
					spinText = spinnerStyle.Render(spinText)
				}
			}
			taskContent.WriteString(fmt.Sprintf("%s %s %s\n", spinText, percentText, labelText))

			bar := task.bar.View()
			taskContent.WriteString(progressBarStyle.Render(bar))
			taskContent.WriteString("\n")

			taskContent.WriteString(fmt.Sprintf("        %s\n", etaStyle.Render(task.countLine(elapsed))))

			var etaText string
			if task.done {
				etaText = etaStyle.Render(fmt.Sprintf("completed in %s", formatDurationShort(elapsed)))
			} else {
				etaText = etaStyle.Render(fmt.Sprintf("elapsed %s · eta %s",
					formatDurationShort(elapsed),
					formatDurationShort(eta)))
			}
			taskContent.WriteString(fmt.Sprintf("        %s\n", etaText))
		}

		m.vp.SetContent(taskContent.String())
		b.WriteString(titleStyle.Render(" Collecting"))
		b.WriteString(" ")
		b.WriteString(etaStyle.Render(fmt.Sprintf("(↑/↓ scroll, %d tasks)", len(m.order))))
		b.WriteString("\n")
		b.WriteString(m.vp.View())
	}

	return b.String()
}

// countLine renders the task's progress numbers in its own unit: bytes
// with a transfer rate for audio downloads, plain counts for videos.
func (t *progressTask) countLine(elapsed time.Duration) string {
	if t.unit == UnitCount {
		return fmt.Sprintf("%d / %d videos", t.current, t.total)
	}
	return fmt.Sprintf("%s / %s · %s",
		humanBytes(t.current),
		humanBytes(t.total),
		formatRate(t.current, elapsed),
	)
}

func formatRate(current int64, elapsed time.Duration) string {
	if elapsed <= 0 {
		return "--/s"
	}
	rate := int64(float64(current) / elapsed.Seconds())
	if rate <= 0 {
		return "--/s"
	}
	return humanBytes(rate) + "/s"
}

func estimateETA(current, total int64, elapsed time.Duration) time.Duration {
	if total <= 0 || current <= 0 {
		return 0
	}
	remaining := total - current
	if remaining <= 0 {
		return 0
	}
	rate := float64(current) / elapsed.Seconds()
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/rate) * time.Second
}
