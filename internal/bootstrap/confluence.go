package bootstrap

import (
	"context"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/flowme-cloud/flowme-backend/config"
	"github.com/flowme-cloud/flowme-backend/internal/confluence"
)

// NewConfluenceClient builds the wiki client. With an OAuth client ID the
// app identity uses client credentials; otherwise basic auth.
func NewConfluenceClient(ctx context.Context, cfg config.ConfluenceConfig) *confluence.Client {
	opts := confluence.Options{
		BaseURL:  cfg.BaseURL,
		Email:    cfg.Email,
		APIToken: cfg.APIToken,
		Timeout:  cfg.Timeout,
	}
	if cfg.RequestsPerSecond > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}
	if cfg.OAuthClientID != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			TokenURL:     cfg.OAuthTokenURL,
			Scopes:       cfg.OAuthScopes,
		}
		hc := cc.Client(ctx)
		hc.Timeout = cfg.Timeout
		opts.AppHTTPClient = hc
	}
	return confluence.NewClient(opts)
}
