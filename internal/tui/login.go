package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/googler-dev/googler-web/internal/handshake"
	"github.com/googler-dev/googler-web/internal/logging"
	log "github.com/sirupsen/logrus"
)

const maxLogLines = 6

// Outcome is what one sign-in attempt settled into.
type Outcome struct {
	State     handshake.State
	Identity  handshake.Identity
	SessionID string
	// Err is a host failure that prevented the handshake from being mounted.
	Err error
	// Cause is the underlying error behind Err, kept for diagnostics.
	Cause error
}

// Failed reports whether the attempt ended without a session.
func (o Outcome) Failed() bool {
	return o.Err != nil || o.State.Phase != handshake.Succeeded
}

// AttemptFunc runs one sign-in. It must return when ctx is cancelled.
type AttemptFunc func(ctx context.Context) Outcome

type outcomeMsg struct {
	seq     int
	outcome Outcome
}

type logLineMsg string

// loginModel is the bubbletea model of the sign-in view.
type loginModel struct {
	authorizeURL string
	attempt      AttemptFunc
	hook         *LogHook

	base    context.Context
	cancel  context.CancelFunc
	seq     int
	settled bool
	outcome Outcome

	initial  tea.Cmd
	spinner  spinner.Model
	logs     []string
	width    int
	quitting bool
}

func newLoginModel(ctx context.Context, authorizeURL string, attempt AttemptFunc, hook *LogHook) loginModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	return loginModel{
		authorizeURL: authorizeURL,
		attempt:      attempt,
		hook:         hook,
		base:         ctx,
		spinner:      s,
	}
}

func (m loginModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForLog, m.initial)
}

// start mounts a fresh attempt and returns the command that runs it.
func (m *loginModel) start() tea.Cmd {
	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := context.WithCancel(m.base)
	m.cancel = cancel
	m.seq++
	m.settled = false
	m.outcome = Outcome{}

	seq, attempt := m.seq, m.attempt
	return func() tea.Msg {
		return outcomeMsg{seq: seq, outcome: attempt(ctx)}
	}
}

func (m loginModel) waitForLog() tea.Msg {
	if m.hook == nil {
		return nil
	}
	line, ok := <-m.hook.Lines()
	if !ok {
		return nil
	}
	return logLineMsg(line)
}

func (m loginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case "r":
			if !m.settled || !m.outcome.Failed() {
				return m, nil
			}
			log.Info("restarting Google sign-in")
			cmd := m.start()
			return m, cmd
		}
		return m, nil

	case outcomeMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.settled = true
		m.outcome = msg.outcome
		return m, nil

	case logLineMsg:
		m.logs = append(m.logs, string(msg))
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		return m, m.waitForLog

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m loginModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Googler · Google sign-in"))
	sb.WriteString("\n")

	switch {
	case !m.settled:
		sb.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(), valueStyle.Render("Completing Google sign-in...")))
		sb.WriteString(subtextStyle.Render("If the browser did not open, visit:"))
		sb.WriteString("\n")
		sb.WriteString(urlStyle.Render(m.authorizeURL))
		sb.WriteString("\n")
	case m.outcome.Err != nil:
		sb.WriteString(errorStyle.Render(m.outcome.Err.Error()))
		sb.WriteString("\n")
	case m.outcome.State.Phase == handshake.Succeeded:
		sb.WriteString(successStyle.Render(fmt.Sprintf("Signed in as %s", m.outcome.Identity)))
		sb.WriteString("\n")
		if m.outcome.SessionID != "" {
			sb.WriteString(subtextStyle.Render("Session " + m.outcome.SessionID))
			sb.WriteString("\n")
		}
	case m.outcome.State.Phase == handshake.Failed:
		sb.WriteString(errorStyle.Render("Authentication Failed"))
		sb.WriteString("\n")
		sb.WriteString(valueStyle.Render(m.outcome.State.Error))
		sb.WriteString("\n")
	default:
		sb.WriteString(errorStyle.Render("Sign-in was interrupted."))
		sb.WriteString("\n")
	}

	body := sectionStyle.Render(sb.String())
	if m.width > 4 {
		body = sectionStyle.Width(m.width - 4).Render(sb.String())
	}

	lines := []string{body}
	if len(m.logs) > 0 {
		rendered := make([]string, 0, len(m.logs))
		for _, line := range m.logs {
			rendered = append(rendered, logLineStyle(line).Render(line))
		}
		lines = append(lines, strings.Join(rendered, "\n"))
	}
	lines = append(lines, helpStyle.Render(m.help()))
	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}

func (m loginModel) help() string {
	if m.settled && m.outcome.Failed() {
		return "r: return to login • q: quit"
	}
	return "q: quit"
}

// RunLogin shows the sign-in view and runs attempt, offering to start over when it fails.
// Log output is routed into the view while it is shown. output defaults to os.Stdout.
func RunLogin(authorizeURL string, attempt AttemptFunc, output io.Writer) error {
	if output == nil {
		output = os.Stdout
	}

	logger := log.StandardLogger()
	hook := NewLogHook(64)
	hook.SetFormatter(&logging.LogFormatter{})
	origHooks := make(log.LevelHooks)
	for level, hooks := range logger.Hooks {
		origHooks[level] = append(origHooks[level], hooks...)
	}
	origOut := logger.Out
	logger.AddHook(hook)
	logger.SetOutput(io.Discard)
	defer func() {
		logger.ReplaceHooks(origHooks)
		logger.SetOutput(origOut)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model := newLoginModel(ctx, authorizeURL, attempt, hook)
	model.initial = model.start()
	_, err := tea.NewProgram(model, tea.WithOutput(output)).Run()
	return err
}
