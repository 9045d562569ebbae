package handshake

import (
	"context"
	"errors"
	"net/url"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Exchanger performs the single network exchange of an authorization code.
// A returned error means the request did not complete.
type Exchanger interface {
	Exchange(ctx context.Context, req ExchangeRequest) (*Response, error)
}

// Session commits an authenticated identity to the surrounding application.
type Session interface {
	Login(identity Identity)
}

// Navigator moves the user to another route.
type Navigator interface {
	Navigate(route string)
}

// SessionFunc adapts a function to the Session interface.
type SessionFunc func(identity Identity)

func (f SessionFunc) Login(identity Identity) { f(identity) }

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// Routes are the two navigation targets of the handler.
type Routes struct {
	// Landing is visited after a successful login.
	Landing string
	// Login is the re-authentication entry point offered after a failure.
	Login string
}

// Phase is the lifecycle position of a handshake.
type Phase int

const (
	Pending Phase = iota
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the observable handshake state. Error is set only when Phase is Failed.
type State struct {
	Phase Phase
	Error string
}

// Options wires a handshake to its collaborators.
type Options struct {
	Exchanger Exchanger
	Session   Session
	Navigator Navigator
	Routes    Routes
	// Logger receives diagnostics; it defaults to the standard logrus logger.
	Logger *log.Entry
}

var errNoExchanger = errors.New("handshake: no exchanger configured")

// Handshake is one mount of the callback handler. It starts Pending, runs at most
// once and settles into Succeeded or Failed.
type Handshake struct {
	query     url.Values
	exchanger Exchanger
	session   Session
	navigator Navigator
	routes    Routes
	logger    *log.Entry

	once sync.Once

	mu       sync.RWMutex
	state    State
	result   Result
	disposed bool
}

// New creates a pending handshake for the given redirect query.
func New(query url.Values, opts Options) *Handshake {
	h := &Handshake{
		query:     cloneValues(query),
		exchanger: opts.Exchanger,
		session:   opts.Session,
		navigator: opts.Navigator,
		routes:    opts.Routes,
		logger:    opts.Logger,
		state:     State{Phase: Pending},
	}
	if h.session == nil {
		h.session = SessionFunc(func(Identity) {})
	}
	if h.navigator == nil {
		h.navigator = NavigatorFunc(func(string) {})
	}
	if h.logger == nil {
		h.logger = log.NewEntry(log.StandardLogger())
	}
	return h
}

// Run executes the handshake. Only the first call performs any work; later calls
// return the current state without issuing another exchange.
func (h *Handshake) Run(ctx context.Context) State {
	h.once.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		h.settle(h.attempt(ctx))
	})
	return h.State()
}

// State returns a snapshot of the current state.
func (h *Handshake) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Result returns the classified outcome, or nil while pending.
func (h *Handshake) Result() Result {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.result
}

// Dispose marks the handler as torn down. A result arriving afterwards is dropped.
func (h *Handshake) Dispose() {
	h.mu.Lock()
	h.disposed = true
	h.mu.Unlock()
}

// RecoveryRoute returns the re-authentication route when the handshake has failed.
func (h *Handshake) RecoveryRoute() (string, bool) {
	if h.State().Phase != Failed {
		return "", false
	}
	return h.routes.Login, true
}

// Recover is the user-triggered recovery action of a failed handshake.
// It navigates to the login route and reports whether navigation happened.
func (h *Handshake) Recover() bool {
	h.mu.RLock()
	allowed := h.state.Phase == Failed && !h.disposed
	h.mu.RUnlock()
	if !allowed {
		return false
	}
	h.navigator.Navigate(h.routes.Login)
	return true
}

func (h *Handshake) attempt(ctx context.Context) Result {
	params, ok := ExtractParameters(h.query)
	if !ok {
		if code, description := ProviderError(h.query); code != "" {
			h.logger.WithFields(log.Fields{
				"provider_error":       code,
				"provider_description": description,
			}).Warn("identity provider reported an error on the redirect")
		}
		h.logger.Error("missing code or state parameters")
		return MissingParameters{}
	}
	if h.exchanger == nil {
		h.logger.WithError(errNoExchanger).Error("error during authentication exchange")
		return TransportFailure{Cause: errNoExchanger}
	}

	resp, err := h.exchanger.Exchange(ctx, ExchangeRequest{Code: params.Code, State: params.State})
	if err != nil {
		h.logger.WithError(err).Error("error during authentication exchange")
		return TransportFailure{Cause: err}
	}
	result := Classify(resp)
	switch r := result.(type) {
	case MalformedPayload:
		h.logger.Errorf("error parsing exchange response: %s", r.Detail)
	case HTTPFailure:
		entry := h.logger.WithField("status", r.Status)
		if resp.BodyErr != nil {
			entry = entry.WithError(resp.BodyErr)
		}
		entry.Warn("token exchange rejected")
	}
	return result
}

func (h *Handshake) settle(result Result) {
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		h.logger.WithField("result", Kind(result)).Debug("handler disposed before the exchange finished; dropping result")
		return
	}
	if h.state.Phase != Pending {
		h.mu.Unlock()
		return
	}
	h.result = result
	success, ok := result.(Success)
	if ok {
		h.state = State{Phase: Succeeded}
	} else {
		h.state = State{Phase: Failed, Error: FailureMessage(result)}
	}
	h.mu.Unlock()

	if !ok {
		h.logger.WithField("result", Kind(result)).Info("authentication failed")
		return
	}
	h.logger.WithField("identity", success.Identity.String()).Info("authentication succeeded")
	h.session.Login(success.Identity)
	h.navigator.Navigate(h.routes.Landing)
}

func cloneValues(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for key, vals := range values {
		out[key] = append([]string(nil), vals...)
	}
	return out
}
