package binanceclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"

	"futuresHook/internal/domain"
	"futuresHook/internal/ports"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	defaultHTTPTimeout = 15 * time.Second
)

// Config holds configuration specific to the Binance gateway factory.
type Config struct {
	Logger         ports.Logger
	BaseURL        string  // production override, empty for the default endpoint
	TestnetBaseURL string  // testnet override, empty for the default endpoint
	RatePerSecond  float64 // requests per second shared by every session of this process
	RateBurst      int
	HTTPTimeout    time.Duration
	SkipPing       bool
}

// Factory opens a fresh authenticated Client per instruction. All sessions share one rate limiter.
type Factory struct {
	cfg     Config
	limiter *rate.Limiter
}

// NewFactory creates a gateway factory.
func NewFactory(cfg Config) (*Factory, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance gateway factory")
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 5
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
	return &Factory{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
	}, nil
}

// Open builds a session for creds and checks connectivity.
func (f *Factory) Open(ctx context.Context, creds domain.Credentials) (ports.ExchangeGateway, error) {
	if strings.TrimSpace(creds.APIKey) == "" || strings.TrimSpace(creds.APISecret) == "" {
		return nil, fmt.Errorf("open session failed: %w: api key and secret are required", ports.ErrGatewayAuth)
	}

	fc := futures.NewClient(creds.APIKey, creds.APISecret)
	fc.BaseURL = f.baseURL(creds.Testnet)
	fc.HTTPClient = &http.Client{
		Timeout:   f.cfg.HTTPTimeout,
		Transport: &limitedTransport{limiter: f.limiter, next: http.DefaultTransport},
	}

	client := &Client{futuresClient: fc, logger: f.cfg.Logger}
	f.cfg.Logger.Debug(ctx, "Binance session opened", map[string]interface{}{"baseURL": fc.BaseURL, "testnet": creds.Testnet})

	if !f.cfg.SkipPing {
		if err := client.Ping(ctx); err != nil {
			return nil, err
		}
	}
	return client, nil
}

func (f *Factory) baseURL(testnet bool) string {
	if testnet {
		if f.cfg.TestnetBaseURL != "" {
			return f.cfg.TestnetBaseURL
		}
		return baseURLTestnet
	}
	if f.cfg.BaseURL != "" {
		return f.cfg.BaseURL
	}
	return baseURLProduction
}

// limitedTransport blocks each outbound request on the shared token bucket.
type limitedTransport struct {
	limiter *rate.Limiter
	next    http.RoundTripper
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w: %w", ports.ErrRateLimited, err)
	}
	return t.next.RoundTrip(req)
}
