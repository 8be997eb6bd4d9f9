package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tonimelisma/procore-go/internal/config"
	"github.com/tonimelisma/procore-go/internal/procore"
)

// Session is an authenticated API client for one command invocation. The
// credential lives only as long as the process.
type Session struct {
	Client *procore.Client
}

// newSession authenticates and returns a Session. Tests replace it to skip
// the browser flow.
var newSession = openSession

// openSession runs the browser login and builds the API client. Every error
// is prefixed with "auth: " so the user can tell it apart from listing
// failures.
func openSession(ctx context.Context, cc *CLIContext) (*Session, error) {
	cfg := cc.Cfg

	if err := cfg.RequireCredentials(); err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	httpClient := newHTTPClient(cfg)

	var opener procore.BrowserOpener
	if cfg.OpenBrowser {
		opener = newSystemBrowser()
	}

	broker, err := procore.NewTokenBroker(procore.AuthConfig{
		ClientID:        cfg.ClientID,
		ClientSecret:    cfg.ClientSecret,
		RedirectURI:     cfg.RedirectURI,
		AuthorizeURL:    cfg.AuthorizeURL,
		TokenURL:        cfg.TokenURL,
		CallbackTimeout: cfg.CallbackTimeoutDuration(),
		HTTPClient:      httpClient,
	}, opener, cc.Logger)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	cred, err := broker.Login(ctx, func(authURL string) {
		// Always visible, even with --quiet: the user cannot proceed without it.
		fmt.Fprintf(os.Stderr, "To authorize procore-go, open this URL in your browser:\n\n  %s\n\n", authURL)
	})
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	client := procore.NewClient(clientConfig(cfg), httpClient, cred, cc.Logger)

	return &Session{Client: client}, nil
}

func clientConfig(cfg *config.Config) procore.ClientConfig {
	return procore.ClientConfig{
		BaseURL:   cfg.APIBaseURL,
		UserAgent: cfg.UserAgent,
		PageSize:  cfg.PageSize,
		Retry:     retryPolicy(cfg),
	}
}

// retryPolicy maps the config's retry budgets onto the client. In the config
// 0 means "never retry"; RetryPolicy treats 0 as "use the default" and a
// negative count as "never retry".
func retryPolicy(cfg *config.Config) procore.RetryPolicy {
	p := procore.RetryPolicy{
		MaxRateLimitRetries: cfg.MaxRateLimitRetries,
		RateLimitWait:       cfg.RateLimitWaitDuration(),
		MaxServerRetries:    cfg.MaxServerRetries,
		MaxBackoff:          cfg.MaxBackoffDuration(),
	}

	if p.MaxRateLimitRetries == 0 {
		p.MaxRateLimitRetries = -1
	}

	if p.MaxServerRetries == 0 {
		p.MaxServerRetries = -1
	}

	return p
}
