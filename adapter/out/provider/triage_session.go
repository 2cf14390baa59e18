package provider

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"

	"ticket_triage/core/domain"
	"ticket_triage/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/term"
	"google.golang.org/api/gmail/v1"
)

// ErrNotInteractive is returned when authorization needs a terminal and
// there is none.
var ErrNotInteractive = errors.New("interactive authorization requires a terminal")

// SessionConfig locates the OAuth client credentials.
type SessionConfig struct {
	CredentialsFile string
	ClientID        string
	ClientSecret    string
	RedirectURL     string
}

// OAuthConfig builds the OAuth client from a downloaded credentials file,
// or from the client id and secret when the file does not exist.
func OAuthConfig(cfg SessionConfig) (*oauth2.Config, error) {
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		switch {
		case err == nil:
			oc, err := google.ConfigFromJSON(data, gmail.GmailModifyScope)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", cfg.CredentialsFile, err)
			}
			if cfg.RedirectURL != "" {
				oc.RedirectURL = cfg.RedirectURL
			}
			return oc, nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read %s: %w", cfg.CredentialsFile, err)
		}
	}

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("no OAuth client: set GOOGLE_CREDENTIALS_FILE or GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{gmail.GmailModifyScope},
		Endpoint:     google.Endpoint,
	}, nil
}

// MailboxSession owns the mailbox credentials: it loads the stored token,
// refreshes it when it expires and persists every new token.
type MailboxSession struct {
	oauth *oauth2.Config
	store TokenStore
	log   *logger.Logger
}

// NewMailboxSession creates a session for oauth backed by store.
func NewMailboxSession(oauth *oauth2.Config, store TokenStore) *MailboxSession {
	return &MailboxSession{
		oauth: oauth,
		store: store,
		log:   logger.WithField("component", "mailbox_session"),
	}
}

// TokenSource returns a refreshing token source for the stored token. It
// fails with *domain.AuthenticationError when no usable token is stored.
func (s *MailboxSession) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	token, err := s.store.Load()
	if errors.Is(err, ErrNoToken) {
		return nil, &domain.AuthenticationError{
			Reason: fmt.Sprintf("no token in %s, run the auth command first", s.store.Description()),
			Err:    err,
		}
	}
	if err != nil {
		return nil, &domain.AuthenticationError{Reason: "token store unreadable", Err: err}
	}
	if !token.Valid() && token.RefreshToken == "" {
		return nil, &domain.AuthenticationError{Reason: "stored token expired and cannot be refreshed"}
	}

	return &persistingTokenSource{
		base:  s.oauth.TokenSource(ctx, token),
		store: s.store,
		last:  token.AccessToken,
		log:   s.log,
	}, nil
}

// Authorize runs the installed-app flow on the terminal: it prints the
// consent URL, reads the code (or the full redirect URL) and stores the
// resulting token.
func (s *MailboxSession) Authorize(ctx context.Context, in *os.File, w io.Writer) error {
	if !term.IsTerminal(int(in.Fd())) {
		return ErrNotInteractive
	}
	return s.authorize(ctx, in, w)
}

func (s *MailboxSession) authorize(ctx context.Context, r io.Reader, w io.Writer) error {
	state := uuid.NewString()
	authURL := s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Fprintf(w, "Open this URL in a browser and grant access:\n\n  %s\n\n", authURL)
	fmt.Fprint(w, "Paste the authorization code or the redirected URL: ")

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read authorization code: %w", err)
	}
	code, err := parseAuthCode(strings.TrimSpace(line), state)
	if err != nil {
		return err
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return &domain.AuthenticationError{Reason: "code exchange failed", Err: err}
	}
	if err := s.store.Save(token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	s.log.Info("token stored in %s", s.store.Description())
	return nil
}

// parseAuthCode accepts a bare code or a redirect URL carrying code and state.
func parseAuthCode(input, state string) (string, error) {
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.Contains(input, "://") {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	q := u.Query()
	if got := q.Get("state"); got != "" && got != state {
		return "", errors.New("state mismatch in redirect URL")
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("redirect URL carries no code")
	}
	return code, nil
}

// persistingTokenSource saves every refreshed token to the store.
type persistingTokenSource struct {
	base  oauth2.TokenSource
	store TokenStore
	log   *logger.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := p.base.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, &domain.AuthenticationError{Reason: "token refresh rejected", Err: err}
		}
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if token.AccessToken != p.last {
		if err := p.store.Save(token); err != nil {
			p.log.WithError(err).Warn("refreshed token not persisted")
		} else {
			p.last = token.AccessToken
		}
	}
	return token, nil
}
