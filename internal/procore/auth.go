package procore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// OAuth2 endpoints and the fixed local redirect.
const (
	DefaultAuthorizeURL = "https://login.procore.com/oauth/authorize"
	DefaultTokenURL     = "https://login.procore.com/oauth/token"
	DefaultRedirectURI  = "http://127.0.0.1:8765/callback"
)

// defaultCallbackTimeout bounds how long Await blocks for the browser redirect.
const defaultCallbackTimeout = 5 * time.Minute

// stateTokenBytes is the number of random bytes for the OAuth2 state parameter.
const stateTokenBytes = 16

// shutdownTimeout is how long to wait for the callback server to drain.
const shutdownTimeout = 5 * time.Second

// BrowserOpener opens a URL for the user. The CLI launches the system
// browser; tests substitute a fake and inspect the URL instead.
type BrowserOpener interface {
	OpenURL(rawURL string) error
}

// AuthConfig holds the OAuth2 application settings.
type AuthConfig struct {
	ClientID        string
	ClientSecret    string
	RedirectURI     string        // empty = DefaultRedirectURI
	AuthorizeURL    string        // empty = DefaultAuthorizeURL
	TokenURL        string        // empty = DefaultTokenURL
	CallbackTimeout time.Duration // 0 = defaultCallbackTimeout
	HTTPClient      *http.Client  // used for the token exchange; nil = http.DefaultClient
}

// Authorization is the URL the user must visit and the state value the
// callback has to echo back.
type Authorization struct {
	URL   string
	State string
}

// TokenBroker runs the OAuth2 authorization-code flow against Procore and
// produces a Credential. It never stores or refreshes tokens.
type TokenBroker struct {
	cfg          *oauth2.Config
	callbackPath string
	bindHost     string
	bindPort     int
	timeout      time.Duration
	httpClient   *http.Client
	opener       BrowserOpener
	logger       *slog.Logger
	nowFunc      func() time.Time
}

// NewTokenBroker validates ac and builds a broker. opener may be nil, in
// which case the URL is only surfaced to the caller.
func NewTokenBroker(ac AuthConfig, opener BrowserOpener, logger *slog.Logger) (*TokenBroker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if ac.ClientID == "" {
		return nil, errors.New("procore: OAuth2 client ID is required")
	}

	redirect := ac.RedirectURI
	if redirect == "" {
		redirect = DefaultRedirectURI
	}

	u, err := url.Parse(redirect)
	if err != nil {
		return nil, fmt.Errorf("procore: invalid redirect URI %q: %w", redirect, err)
	}

	host := u.Hostname()
	if u.Scheme != "http" || (host != "localhost" && host != "127.0.0.1") {
		return nil, fmt.Errorf("procore: redirect URI %q must be http://127.0.0.1:<port>/<path>", redirect)
	}

	port, err := strconv.Atoi(u.Port())
	if err != nil || port < 0 || port > 65535 {
		return nil, fmt.Errorf("procore: redirect URI %q has no valid port", redirect)
	}

	callbackPath := u.Path
	if callbackPath == "" {
		callbackPath = "/"
	}

	timeout := ac.CallbackTimeout
	if timeout <= 0 {
		timeout = defaultCallbackTimeout
	}

	authURL := ac.AuthorizeURL
	if authURL == "" {
		authURL = DefaultAuthorizeURL
	}

	tokenURL := ac.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	return &TokenBroker{
		cfg: &oauth2.Config{
			ClientID:     ac.ClientID,
			ClientSecret: ac.ClientSecret,
			RedirectURL:  redirect,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
				// Procore expects client_id/client_secret in the form body.
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		callbackPath: callbackPath,
		bindHost:     "127.0.0.1",
		bindPort:     port,
		timeout:      timeout,
		httpClient:   ac.HTTPClient,
		opener:       opener,
		logger:       logger,
		nowFunc:      time.Now,
	}, nil
}

// RedirectURI returns the redirect URI sent to the provider. After
// ListenCallback on port 0 it reflects the port actually bound.
func (b *TokenBroker) RedirectURI() string {
	return b.cfg.RedirectURL
}

// BeginAuthorization builds the authorization URL with a fresh random state.
func (b *TokenBroker) BeginAuthorization() (Authorization, error) {
	state, err := generateState()
	if err != nil {
		return Authorization{}, fmt.Errorf("procore: generating state token: %w", err)
	}

	return Authorization{
		URL:   b.cfg.AuthCodeURL(state),
		State: state,
	}, nil
}

// generateState produces a cryptographically random hex string for the OAuth2
// state parameter.
func generateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// ExchangeCode trades an authorization code for a Credential. A non-2xx
// answer from the token endpoint becomes an *AuthExchangeError carrying the
// status and body.
func (b *TokenBroker) ExchangeCode(ctx context.Context, code string) (Credential, error) {
	b.logger.Info("exchanging authorization code for access token")

	if b.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	}

	tok, err := b.cfg.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			b.logger.Error("token endpoint rejected code exchange",
				slog.Int("status", re.Response.StatusCode),
			)

			return Credential{}, &AuthExchangeError{
				StatusCode: re.Response.StatusCode,
				Body:       string(re.Body),
			}
		}

		return Credential{}, fmt.Errorf("%w: %w", ErrAuthExchangeFailed, err)
	}

	if tok.AccessToken == "" {
		return Credential{}, fmt.Errorf("%w: response carried no access token", ErrAuthExchangeFailed)
	}

	cred := Credential{AccessToken: tok.AccessToken, IssuedAt: b.nowFunc()}
	b.logger.Info("token exchange successful", slog.Time("issued_at", cred.IssuedAt))

	return cred, nil
}

// Login runs the whole flow: bind the callback listener, build the
// authorization URL, hand it to display (always), try to open the browser
// (failure is only logged), wait for the redirect and exchange the code.
func (b *TokenBroker) Login(ctx context.Context, display func(authURL string)) (Credential, error) {
	b.logger.Info("starting browser auth flow (authorization code)")

	cs, err := b.ListenCallback(ctx)
	if err != nil {
		return Credential{}, err
	}
	defer cs.Close()

	auth, err := b.BeginAuthorization()
	if err != nil {
		return Credential{}, err
	}

	if display != nil {
		display(auth.URL)
	}

	b.launchBrowser(auth.URL)

	code, _, err := cs.Await(ctx, auth.State)
	if err != nil {
		return Credential{}, err
	}

	return b.ExchangeCode(ctx, code)
}

// launchBrowser attempts to open the auth URL. Failure is non-fatal because
// the URL has already been surfaced.
func (b *TokenBroker) launchBrowser(authURL string) {
	if b.opener == nil {
		return
	}

	b.logger.Info("opening browser for authorization", slog.String("url", redactedURL(authURL)))

	if err := b.opener.OpenURL(authURL); err != nil {
		b.logger.Warn("failed to open browser, open the printed URL manually",
			slog.String("error", err.Error()),
		)
	}
}

// callbackResult carries the raw query of the single accepted callback.
type callbackResult struct {
	code      string
	state     string
	errCode   string
	errDetail string
	err       error
}

// CallbackServer is the local listener for the OAuth2 redirect. It accepts
// exactly one request on the callback path and then stops listening.
type CallbackServer struct {
	srv       *http.Server
	port      int
	timeout   time.Duration
	resultCh  chan callbackResult
	accepted  sync.Once
	closeOnce sync.Once
	logger    *slog.Logger
}

// ListenCallback binds the redirect URI's port on the loopback interface and
// starts serving the callback path. With port 0 an ephemeral port is bound
// and the broker's redirect URI is rewritten to match.
func (b *TokenBroker) ListenCallback(ctx context.Context) (*CallbackServer, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", net.JoinHostPort(b.bindHost, strconv.Itoa(b.bindPort)))
	if err != nil {
		return nil, fmt.Errorf("procore: binding callback listener on port %d: %w", b.bindPort, err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, errors.New("procore: listener address is not TCP")
	}

	if b.bindPort == 0 {
		b.cfg.RedirectURL = rewritePort(b.cfg.RedirectURL, tcpAddr.Port)
	}

	cs := &CallbackServer{
		port:     tcpAddr.Port,
		timeout:  b.timeout,
		resultCh: make(chan callbackResult, 1),
		logger:   b.logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+b.callbackPath, cs.handleCallback)

	cs.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	b.logger.Info("callback server listening",
		slog.Int("port", cs.port),
		slog.String("path", b.callbackPath),
	)

	go func() {
		if serveErr := cs.srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			cs.deliver(callbackResult{err: fmt.Errorf("procore: callback server error: %w", serveErr)})
		}
	}()

	return cs, nil
}

// rewritePort swaps the port of a loopback redirect URI.
func rewritePort(rawURL string, port int) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))

	return u.String()
}

// Port returns the TCP port actually bound.
func (cs *CallbackServer) Port() int {
	return cs.port
}

// deliver records the first result; later ones are dropped.
func (cs *CallbackServer) deliver(r callbackResult) bool {
	delivered := false

	cs.accepted.Do(func() {
		cs.resultCh <- r
		delivered = true
	})

	return delivered
}

// handleCallback records the first request's query parameters. Validation
// happens in Await, which knows the expected state.
func (cs *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	ok := cs.deliver(callbackResult{
		code:      q.Get("code"),
		state:     q.Get("state"),
		errCode:   q.Get("error"),
		errDetail: q.Get("error_description"),
	})
	if !ok {
		http.Error(w, "Authorization already received", http.StatusGone)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>Authorization received</h1>"+
		"<p>You can close this window and return to the terminal.</p></body></html>")
}

// Await blocks until the callback arrives, the timeout elapses, or ctx is
// canceled, then stops listening. It returns the code and the state the
// provider echoed back.
func (cs *CallbackServer) Await(ctx context.Context, expectedState string) (string, string, error) {
	defer cs.Close()

	timer := time.NewTimer(cs.timeout)
	defer timer.Stop()

	select {
	case r := <-cs.resultCh:
		if r.err != nil {
			return "", "", r.err
		}

		if r.state != expectedState {
			return "", r.state, ErrStateMismatch
		}

		if r.errCode != "" {
			return "", r.state, fmt.Errorf("%w: %s: %s", ErrAuthorizationDenied, r.errCode, r.errDetail)
		}

		if r.code == "" {
			return "", r.state, fmt.Errorf("%w: callback missing authorization code", ErrAuthorizationDenied)
		}

		cs.logger.Info("received authorization code")

		return r.code, r.state, nil
	case <-timer.C:
		return "", "", fmt.Errorf("%w after %s", ErrCallbackTimeout, cs.timeout)
	case <-ctx.Done():
		return "", "", fmt.Errorf("procore: browser auth canceled: %w", ctx.Err())
	}
}

// Close shuts the listener down. Safe to call more than once.
func (cs *CallbackServer) Close() {
	cs.closeOnce.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := cs.srv.Shutdown(shutdownCtx); err != nil {
			cs.logger.Warn("callback server shutdown error", slog.String("error", err.Error()))
		}
	})
}

// redactedURL strips the query from an authorization URL for logging.
func redactedURL(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}

	return rawURL
}
