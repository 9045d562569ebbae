package tui

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/googler-dev/googler-web/internal/handshake"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(outcomes ...Outcome) (loginModel, *atomic.Int32) {
	var calls atomic.Int32
	attempt := func(context.Context) Outcome {
		n := int(calls.Add(1)) - 1
		if n < len(outcomes) {
			return outcomes[n]
		}
		return Outcome{}
	}
	m := newLoginModel(context.Background(), "http://backend/api/google/login", attempt, nil)
	return m, &calls
}

// settle runs the pending attempt command and feeds its message back into the model.
func settle(t *testing.T, m loginModel, cmd tea.Cmd) loginModel {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	next, _ := m.Update(msg)
	return next.(loginModel)
}

func TestLoginModelPendingView(t *testing.T) {
	m, calls := newTestModel()
	m.initial = m.start()

	view := m.View()
	assert.Contains(t, view, "Completing Google sign-in...")
	assert.Contains(t, view, "http://backend/api/google/login")
	assert.Contains(t, view, "q: quit")
	assert.Equal(t, int32(0), calls.Load())
}

func TestLoginModelSuccess(t *testing.T) {
	m, calls := newTestModel(Outcome{
		State:     handshake.State{Phase: handshake.Succeeded},
		Identity:  handshake.NewIdentity("bob"),
		SessionID: "session-1",
	})
	cmd := m.start()
	m = settle(t, m, cmd)

	assert.True(t, m.settled)
	view := m.View()
	assert.Contains(t, view, "Signed in as bob")
	assert.Contains(t, view, "session-1")
	assert.NotContains(t, view, "r: return to login")

	// Recovery is only offered after a failure.
	next, cmd := m.Update(keyMsg("r"))
	assert.Nil(t, cmd)
	assert.Equal(t, 1, next.(loginModel).seq)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoginModelFailureAndRecover(t *testing.T) {
	m, calls := newTestModel(
		Outcome{State: handshake.State{Phase: handshake.Failed, Error: "Internal error"}},
		Outcome{State: handshake.State{Phase: handshake.Succeeded}, Identity: handshake.NewIdentity("alice")},
	)
	cmd := m.start()
	m = settle(t, m, cmd)

	view := m.View()
	assert.Contains(t, view, "Authentication Failed")
	assert.Contains(t, view, "Internal error")
	assert.Contains(t, view, "r: return to login")

	next, cmd := m.Update(keyMsg("r"))
	m = next.(loginModel)
	assert.False(t, m.settled)
	assert.Equal(t, 2, m.seq)
	assert.Contains(t, m.View(), "Completing Google sign-in...")

	m = settle(t, m, cmd)
	assert.Contains(t, m.View(), "Signed in as alice")
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoginModelHostError(t *testing.T) {
	m, _ := newTestModel(Outcome{Err: errors.New("The callback port is already in use.")})
	cmd := m.start()
	m = settle(t, m, cmd)

	assert.True(t, m.outcome.Failed())
	assert.Contains(t, m.View(), "The callback port is already in use.")
}

func TestLoginModelIgnoresStaleOutcome(t *testing.T) {
	m, _ := newTestModel()
	m.start()
	next, _ := m.Update(outcomeMsg{seq: m.seq + 5, outcome: Outcome{State: handshake.State{Phase: handshake.Succeeded}}})
	assert.False(t, next.(loginModel).settled)
}

func TestLoginModelQuitCancelsAttempt(t *testing.T) {
	var attemptCtx context.Context
	m := newLoginModel(context.Background(), "http://backend/login", func(ctx context.Context) Outcome {
		attemptCtx = ctx
		<-ctx.Done()
		return Outcome{State: handshake.State{Phase: handshake.Pending}}
	}, nil)
	cmd := m.start()

	next, quit := m.Update(keyMsg("q"))
	m = next.(loginModel)
	require.NotNil(t, quit)
	assert.IsType(t, tea.QuitMsg{}, quit())
	assert.Empty(t, m.View())

	msg := cmd().(outcomeMsg)
	require.NotNil(t, attemptCtx)
	assert.ErrorIs(t, attemptCtx.Err(), context.Canceled)
	assert.Equal(t, handshake.Pending, msg.outcome.State.Phase)
}

func TestLoginModelLogLines(t *testing.T) {
	m, _ := newTestModel()
	for i := 0; i < maxLogLines+2; i++ {
		next, cmd := m.Update(logLineMsg("[info ] line"))
		assert.NotNil(t, cmd)
		m = next.(loginModel)
	}
	assert.Len(t, m.logs, maxLogLines)
	assert.Equal(t, maxLogLines, strings.Count(m.View(), "line"))
}

func TestLogHookDropsOldest(t *testing.T) {
	hook := NewLogHook(2)
	logger := log.New()
	logger.Out = nopWriter{}
	logger.AddHook(hook)

	logger.Info("one")
	logger.Info("two")
	logger.Info("three")
	logger.Debug("hidden")

	first := <-hook.Lines()
	second := <-hook.Lines()
	assert.Contains(t, first, "two")
	assert.Contains(t, second, "three")
	select {
	case extra := <-hook.Lines():
		t.Fatalf("unexpected line %q", extra)
	default:
	}
}

func TestLogLineStyle(t *testing.T) {
	assert.Equal(t, logWarnStyle, logLineStyle("[2026-01-01 00:00:00] [--------] [warn ] msg"))
	assert.Equal(t, logErrorStyle, logLineStyle("time=x level=error msg=boom"))
	assert.Equal(t, logInfoStyle, logLineStyle("plain"))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
