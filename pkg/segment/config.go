package segment

import (
	"log/slog"
	"net/http"

	"github.com/teslashibe/facescan/internal/httpc"
)

// DefaultBaseURL is the local development address of the segmentation
// service.
const DefaultBaseURL = "http://localhost:3001"

// Config holds client configuration.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithBaseURL sets the service base URL, e.g. "http://10.0.0.5:3001".
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) { c.HTTPClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the client defaults. The HTTP client has no overall
// request timeout; only dial and TLS handshake limits apply.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    DefaultBaseURL,
		HTTPClient: httpc.NewClient(0),
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
