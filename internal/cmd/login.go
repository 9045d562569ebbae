// Package cmd implements the command-line entry points that run alongside the web host.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/googler-dev/googler-web/internal/auth/callback"
	"github.com/googler-dev/googler-web/internal/browser"
	"github.com/googler-dev/googler-web/internal/config"
	"github.com/googler-dev/googler-web/internal/exchange"
	"github.com/googler-dev/googler-web/internal/handshake"
	"github.com/googler-dev/googler-web/internal/misc"
	"github.com/googler-dev/googler-web/internal/session"
	"github.com/googler-dev/googler-web/internal/tui"
	"github.com/googler-dev/googler-web/internal/util"
	log "github.com/sirupsen/logrus"
)

// manualPromptDelay is how long a login waits for the redirect before offering to take a
// pasted callback URL instead.
var manualPromptDelay = 15 * time.Second

// LoginOptions contains options for the login process.
type LoginOptions struct {
	// NoBrowser indicates whether to skip opening the browser automatically.
	NoBrowser bool

	// CallbackPort overrides the local callback port when set (>0).
	CallbackPort int

	// Prompt allows the caller to provide interactive input when needed.
	Prompt func(prompt string) (string, error)

	// UseTUI renders the login in the terminal UI instead of plain output.
	UseTUI bool

	// Exchanger replaces the HTTP token-exchange client.
	Exchanger handshake.Exchanger

	// Present shows the authorize URL to the user. It defaults to opening a browser.
	Present func(authURL string, port int)

	// Timeout bounds the wait for the redirect. It defaults to callback.DefaultTimeout.
	Timeout time.Duration
}

// LoginResult is the settled outcome of one terminal login.
type LoginResult struct {
	State    handshake.State
	Identity handshake.Identity
	Record   *session.Record
	// Route is the navigation target chosen by the handshake.
	Route string
}

// DoLogin runs the Google sign-in from the terminal and stores the resulting session.
//
// Parameters:
//   - cfg: The application configuration
//   - store: The session store receiving the authenticated record
//   - options: Login options including browser behavior and prompts
func DoLogin(cfg *config.Config, store session.Store, options *LoginOptions) {
	if options == nil {
		options = &LoginOptions{}
	}

	if options.UseTUI {
		attempt := func(ctx context.Context) tui.Outcome {
			opts := *options
			opts.Prompt = nil
			opts.Present = quietPresenter(options.NoBrowser)
			result, err := Login(ctx, cfg, store, &opts)
			return outcomeFrom(result, err)
		}
		if err := tui.RunLogin(cfg.Login.AuthorizeURL, attempt, os.Stdout); err != nil {
			fmt.Printf("Terminal UI failed: %v\n", err)
		}
		return
	}

	if options.Prompt == nil {
		options.Prompt = defaultPrompt()
	}

	result, err := Login(context.Background(), cfg, store, options)
	if err != nil {
		if authErr, ok := errors.AsType[*callback.AuthenticationError](err); ok {
			log.Error(callback.GetUserFriendlyMessage(authErr))
			if authErr.Type == callback.ErrPortInUse.Type {
				os.Exit(callback.ErrPortInUse.Code)
			}
			return
		}
		fmt.Printf("Google authentication failed: %v\n", err)
		return
	}

	switch result.State.Phase {
	case handshake.Succeeded:
		fmt.Printf("Signed in as %s\n", result.Identity)
		if result.Record != nil {
			fmt.Printf("Session %s saved\n", result.Record.ID)
		}
		fmt.Println("Google authentication successful!")
	default:
		fmt.Printf("Google authentication failed: %s\n", result.State.Error)
		fmt.Printf("Run the login again or visit %s to start over.\n", cfg.Login.AuthorizeURL)
	}
}

// Login presents the authorize URL, waits for the identity provider to redirect to the
// local callback route and mounts one handshake for the received parameters. Host errors
// such as a busy port or a missed redirect are returned as callback.AuthenticationError.
func Login(ctx context.Context, cfg *config.Config, store session.Store, options *LoginOptions) (*LoginResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("login: configuration is required")
	}
	if options == nil {
		options = &LoginOptions{}
	}

	port := cfg.Port
	if options.CallbackPort > 0 {
		port = options.CallbackPort
	}

	server := callback.NewServer(port, cfg.Routes.Callback)
	if err := server.Start(); err != nil {
		return nil, err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if errStop := server.Stop(stopCtx); errStop != nil {
			log.Warnf("callback server stop error: %v", errStop)
		}
	}()

	present := options.Present
	if present == nil {
		present = defaultPresenter(options.NoBrowser)
	}
	present(cfg.Login.AuthorizeURL, server.Port())

	timeout := options.Timeout
	if timeout <= 0 {
		timeout = callback.DefaultTimeout
	}
	query, err := waitForRedirect(ctx, server, timeout, options.Prompt)
	if err != nil {
		return nil, err
	}

	exchanger := options.Exchanger
	if exchanger == nil {
		exchanger = exchange.NewClient(cfg)
	}

	result := &LoginResult{}
	hs := handshake.New(query, handshake.Options{
		Exchanger: exchanger,
		Session: handshake.SessionFunc(func(identity handshake.Identity) {
			result.Identity = identity
			if store == nil {
				return
			}
			record := session.NewRecord(identity, cfg.Session.TTL())
			if errSave := store.Save(context.WithoutCancel(ctx), record); errSave != nil {
				log.WithError(errSave).Error("failed to persist session")
				return
			}
			result.Record = record
		}),
		Navigator: handshake.NavigatorFunc(func(route string) { result.Route = route }),
		Routes:    handshake.Routes{Landing: cfg.Routes.Landing, Login: cfg.Routes.Login},
		Logger:    log.WithField("host", "cli"),
	})
	stop := context.AfterFunc(ctx, hs.Dispose)
	defer stop()

	result.State = hs.Run(ctx)
	if result.State.Phase == handshake.Failed {
		if route, ok := hs.RecoveryRoute(); ok {
			result.Route = route
		}
	}
	return result, nil
}

func waitForRedirect(ctx context.Context, server *callback.Server, timeout time.Duration, prompt func(string) (string, error)) (url.Values, error) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Info("waiting for Google authentication callback")

	type waitResult struct {
		query url.Values
		err   error
	}
	waitCh := make(chan waitResult, 1)
	go func() {
		query, err := server.WaitForCallback(waitCtx, timeout)
		waitCh <- waitResult{query: query, err: err}
	}()

	var promptC <-chan time.Time
	if prompt != nil {
		timer := time.NewTimer(manualPromptDelay)
		defer timer.Stop()
		promptC = timer.C
	}

	for {
		select {
		case res := <-waitCh:
			return res.query, res.err
		case <-promptC:
			promptC = nil
			select {
			case res := <-waitCh:
				return res.query, res.err
			default:
			}
			input, errPrompt := prompt("Paste the callback URL (or press Enter to keep waiting): ")
			if errPrompt != nil {
				return nil, errPrompt
			}
			parsed, errParse := misc.ParseOAuthCallback(input)
			if errParse != nil {
				return nil, errParse
			}
			if parsed == nil {
				continue
			}
			return parsed.Values(), nil
		}
	}
}

func defaultPresenter(noBrowser bool) func(string, int) {
	return func(authURL string, port int) {
		if !browser.Present(authURL, noBrowser) {
			util.PrintSSHTunnelInstructions(port)
		}
	}
}

func quietPresenter(noBrowser bool) func(string, int) {
	return func(authURL string, _ int) {
		if noBrowser {
			return
		}
		if err := browser.OpenURL(authURL); err != nil {
			log.Debugf("failed to open browser: %v", err)
		}
	}
}

func defaultPrompt() func(string) (string, error) {
	return func(prompt string) (string, error) {
		fmt.Println()
		fmt.Println(prompt)
		var value string
		_, err := fmt.Scanln(&value)
		if err != nil && err.Error() == "unexpected newline" {
			return "", nil
		}
		return value, err
	}
}

func outcomeFrom(result *LoginResult, err error) tui.Outcome {
	if err != nil {
		return tui.Outcome{Err: errors.New(callback.GetUserFriendlyMessage(err)), Cause: err}
	}
	outcome := tui.Outcome{State: result.State, Identity: result.Identity}
	if result.Record != nil {
		outcome.SessionID = result.Record.ID
	}
	return outcome
}
