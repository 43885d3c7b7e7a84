// Package auth provides Google OAuth2 credentials for taskeroo.
//
// The OAuth client comes from the credentials.json downloaded from the Google
// Cloud console. The token is cached in a TokenStore and refreshed or
// re-obtained through a browser login when needed.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
)

// DefaultScopes is read-only mailbox access.
var DefaultScopes = []string{gmail.GmailReadonlyScope}

// Error is the single error type for credential failures. Op names the step
// that failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("authentication failed: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Credential is a usable OAuth client configuration plus token.
type Credential struct {
	Config *oauth2.Config
	Token  *oauth2.Token
}

// HTTPClient returns an auto-refreshing client for API calls.
func (c *Credential) HTTPClient(ctx context.Context) *http.Client {
	return c.Config.Client(ctx, c.Token)
}

// LoginFunc runs an interactive authorization and returns a fresh token.
type LoginFunc func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)

// Provider loads, refreshes and obtains credentials.
type Provider struct {
	CredentialsPath string
	Store           TokenStore
	Scopes          []string
	Login           LoginFunc
	Log             zerolog.Logger
}

// NewProvider returns a provider that logs in through a loopback browser
// redirect, printing the authorization URL to out.
func NewProvider(credentialsPath string, store TokenStore, out io.Writer, log zerolog.Logger) *Provider {
	return &Provider{
		CredentialsPath: credentialsPath,
		Store:           store,
		Scopes:          DefaultScopes,
		Login:           LoopbackLogin(out, log),
		Log:             log,
	}
}

// Config reads credentials.json into an OAuth2 config.
func (p *Provider) Config() (*oauth2.Config, error) {
	data, err := os.ReadFile(p.CredentialsPath)
	if err != nil {
		return nil, &Error{Op: "read credentials", Err: err}
	}
	scopes := p.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, &Error{Op: "parse credentials", Err: err}
	}
	return cfg, nil
}

// Authenticate returns valid credentials: the cached token when still valid,
// a refreshed one when it has expired, otherwise a new interactive login.
func (p *Provider) Authenticate(ctx context.Context) (*Credential, error) {
	cfg, err := p.Config()
	if err != nil {
		return nil, err
	}

	tok, err := p.Store.Load()
	switch {
	case err == nil && tok.Valid():
		return &Credential{Config: cfg, Token: tok}, nil
	case err == nil && tok.RefreshToken != "":
		fresh, rerr := cfg.TokenSource(ctx, tok).Token()
		if rerr == nil {
			if err := p.Store.Save(fresh); err != nil {
				return nil, &Error{Op: "save token", Err: err}
			}
			p.Log.Debug().Msg("refreshed cached token")
			return &Credential{Config: cfg, Token: fresh}, nil
		}
		p.Log.Warn().Err(rerr).Msg("token refresh failed, starting login")
	case err != nil && !errors.Is(err, ErrNoToken):
		return nil, &Error{Op: "load token", Err: err}
	}

	return p.login(ctx, cfg)
}

// LoginInteractive always runs the interactive flow and caches the result.
func (p *Provider) LoginInteractive(ctx context.Context) (*Credential, error) {
	cfg, err := p.Config()
	if err != nil {
		return nil, err
	}
	return p.login(ctx, cfg)
}

func (p *Provider) login(ctx context.Context, cfg *oauth2.Config) (*Credential, error) {
	if p.Login == nil {
		return nil, &Error{Op: "login", Err: errors.New("interactive login not available")}
	}
	tok, err := p.Login(ctx, cfg)
	if err != nil {
		return nil, &Error{Op: "login", Err: err}
	}
	if err := p.Store.Save(tok); err != nil {
		return nil, &Error{Op: "save token", Err: err}
	}
	return &Credential{Config: cfg, Token: tok}, nil
}

// RefreshStatus reports what Refresh did.
type RefreshStatus int

const (
	StillValid RefreshStatus = iota
	Refreshed
	NeedsLogin
)

func (s RefreshStatus) String() string {
	switch s {
	case StillValid:
		return "still valid"
	case Refreshed:
		return "refreshed"
	default:
		return "needs login"
	}
}

// Refresh renews the cached token if it has expired. It never starts an
// interactive login; NeedsLogin tells the caller one is required.
func (p *Provider) Refresh(ctx context.Context) (RefreshStatus, error) {
	tok, err := p.Store.Load()
	if errors.Is(err, ErrNoToken) {
		return NeedsLogin, nil
	}
	if err != nil {
		return NeedsLogin, &Error{Op: "load token", Err: err}
	}
	if tok.Valid() {
		return StillValid, nil
	}
	if tok.RefreshToken == "" {
		return NeedsLogin, nil
	}

	cfg, err := p.Config()
	if err != nil {
		return NeedsLogin, err
	}
	fresh, err := cfg.TokenSource(ctx, tok).Token()
	if err != nil {
		return NeedsLogin, &Error{Op: "refresh token", Err: err}
	}
	if err := p.Store.Save(fresh); err != nil {
		return NeedsLogin, &Error{Op: "save token", Err: err}
	}
	return Refreshed, nil
}

// Reset forgets the cached token. It reports whether one existed.
func (p *Provider) Reset() (bool, error) {
	err := p.Store.Delete()
	if errors.Is(err, ErrNoToken) {
		return false, nil
	}
	if err != nil {
		return false, &Error{Op: "delete token", Err: err}
	}
	return true, nil
}
