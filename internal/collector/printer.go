package collector

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LogLevel orders printer messages from most to least urgent.
type LogLevel int

const (
	LogError LogLevel = iota
	LogWarn
	LogInfo
	LogDebug
)

// TaskUnit tells a renderer how to format a task's counters.
type TaskUnit int

const (
	UnitBytes TaskUnit = iota
	UnitCount
)

// ProgressRenderer receives task lifecycle events from a running
// collection. The TUI and the web server each bring their own.
// Implementations must be safe for concurrent use.
type ProgressRenderer interface {
	Register(label string, total int64, unit TaskUnit) string
	Update(id string, current, total int64)
	Finish(id string)
	Log(level LogLevel, msg string)
}

type Printer struct {
	quiet           bool
	color           bool
	columns         int
	titleWidth      int
	level           LogLevel
	progressEnabled bool
	renderer        ProgressRenderer
}

func newPrinter(opts Options) *Printer {
	columns := terminalColumns()
	if columns <= 0 {
		columns = 100
	}

	titleWidth := columns - 44
	if titleWidth < 20 {
		titleWidth = 20
	}
	if titleWidth > 60 {
		titleWidth = 60
	}

	level := LogInfo
	if opts.Verbose {
		level = LogDebug
	}

	return &Printer{
		quiet:           opts.Quiet,
		color:           supportsColor(),
		columns:         columns,
		titleWidth:      titleWidth,
		level:           level,
		progressEnabled: !opts.Quiet && stderrIsTerminal(),
	}
}

// Log prints a status line to stderr, or routes it through the attached
// renderer when there is one.
func (p *Printer) Log(level LogLevel, msg string) {
	if p == nil || msg == "" {
		return
	}
	if p.quiet && level > LogError {
		return
	}
	if level > p.level {
		return
	}
	if p.renderer != nil {
		p.renderer.Log(level, msg)
		return
	}
	label := ""
	switch level {
	case LogError:
		label = p.colorize("error:", colorRed) + " "
	case LogWarn:
		label = p.colorize("warning:", colorYellow) + " "
	}
	fmt.Fprintf(os.Stderr, "%s%s\n", label, msg)
}

func (p *Printer) Prefix(index, total int, title string) string {
	if total <= 0 {
		total = 1
	}
	width := len(strconv.Itoa(total))
	idx := fmt.Sprintf("%*d/%d", width, index, total)
	return fmt.Sprintf("[%s] %-*s", idx, p.titleWidth, truncateText(title, p.titleWidth))
}

func (p *Printer) progressLine(prefix string, current, total int64, elapsed time.Duration) string {
	speed := ""
	if elapsed > 0 {
		speed = humanBytes(int64(float64(current)/elapsed.Seconds())) + "/s"
	}

	if total > 0 {
		percent := float64(current) * 100 / float64(total)
		return fmt.Sprintf("%s %6.2f%% %s / %s %s",
			prefix,
			percent,
			padLeft(humanBytes(current), 9),
			padLeft(humanBytes(total), 9),
			padLeft(speed, 10),
		)
	}

	return fmt.Sprintf("%s %s %s",
		prefix,
		padLeft(humanBytes(current), 9),
		padLeft(speed, 10),
	)
}

// ItemResult prints one video's transcript outcome.
func (p *Printer) ItemResult(prefix string, rec TranscriptRecord, winner string, err error) {
	if err == nil && p.quiet {
		return
	}
	if p.renderer != nil && err == nil {
		return
	}

	statusText := "OK"
	statusColor := colorGreen
	detail := ""
	switch {
	case err != nil:
		statusText = "FAIL"
		statusColor = colorRed
		detail = err.Error()
	case rec.Tier == TierNone:
		statusText = "NONE"
		statusColor = colorYellow
		detail = "no transcript available"
	default:
		detail = fmt.Sprintf("%s, %d chars via %s", rec.Tier, len(rec.Text), winner)
	}

	status := p.colorize(statusText, statusColor)
	maxDetail := p.columns - len(prefix) - len(statusText) - 3
	if maxDetail < 0 {
		maxDetail = 0
	}
	detail = truncateText(detail, maxDetail)

	fmt.Fprintf(os.Stderr, "%s %s %s\n", prefix, status, detail)
}

// Summary prints one line per finished channel: transcript tier counts
// and where the export landed.
func (p *Printer) Summary(captioned, transcribed, missing, total int, output string) {
	if p.quiet {
		return
	}
	capLabel := p.colorize("CAP", colorGreen)
	sttLabel := p.colorize("STT", colorYellow)
	noneLabel := p.colorize("NONE", colorRed)
	fmt.Fprintf(os.Stderr, "Summary: %s %d | %s %d | %s %d | TOTAL %d | OUTPUT %s\n",
		capLabel, captioned, sttLabel, transcribed, noneLabel, missing, total, output)
}

func (p *Printer) colorize(text, color string) string {
	if !p.color || color == "" {
		return text
	}
	return color + text + colorReset
}

func (p *Printer) clearLine() {
	width := p.columns
	if width <= 0 {
		width = 100
	}
	fmt.Fprintf(os.Stderr, "\r%s\r", strings.Repeat(" ", width))
}

func (p *Printer) writeProgressLine(line string) {
	if line == "\n" {
		fmt.Fprint(os.Stderr, "\n")
		return
	}
	fmt.Fprintf(os.Stderr, "\r%s", line)
}

func padLeft(value string, width int) string {
	if len(value) >= width {
		return value
	}
	return strings.Repeat(" ", width-len(value)) + value
}

func truncateText(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	if max <= 3 {
		return text[:max]
	}
	return text[:max-3] + "..."
}

func terminalColumns() int {
	if columns := os.Getenv("COLUMNS"); columns != "" {
		if val, err := strconv.Atoi(columns); err == nil && val > 0 {
			return val
		}
	}
	return 0
}

func stderrIsTerminal() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func supportsColor() bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" || os.Getenv("CLICOLOR_FORCE") != "" {
		return true
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	return stderrIsTerminal()
}

const (
	colorReset  = "\x1b[0m"
	colorGreen  = "\x1b[32m"
	colorRed    = "\x1b[31m"
	colorYellow = "\x1b[33m"
)
