// Package client holds the outbound HTTP plumbing: the shared HTTP client,
// the generative-model generators and the TMDB metadata client.
package client

import (
	"net/http"
	"net/url"
	"time"

	"github.com/Belphemur/SubTranslate/internal/config"
)

// NewHTTPClient builds the HTTP client shared by every outbound integration.
// It honours the configured proxy and timeout, sets the User-Agent and
// decodes gzip, brotli and zstd responses.
func NewHTTPClient(cfg *config.Config) *http.Client {
	logger := config.GetLogger()
	timeout := config.ParseDuration("client_timeout", cfg.ClientTimeout, 2*time.Minute)

	base := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyConnectionString != "" {
		proxyURL, err := url.Parse(cfg.ProxyConnectionString)
		if err != nil {
			logger.Warn().Err(err).Str("proxy", cfg.ProxyConnectionString).Msg("Invalid proxy URL, continuing without proxy")
		} else {
			base.Proxy = http.ProxyURL(proxyURL)
		}
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{next: newCompressionTransport(base), userAgent: userAgent},
	}
}

// userAgentTransport sets the User-Agent header when the caller did not.
type userAgentTransport struct {
	next      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.next.RoundTrip(req)
}
