package telegram

import (
	"strings"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/surveybot/core/config"
)

func chainNames(mws []Middleware) string {
	names := make([]string, 0, len(mws))
	for _, mw := range mws {
		names = append(names, mw.Name)
	}
	return strings.Join(names, ",")
}

func TestDefaultMiddlewaresOrder(t *testing.T) {
	if got := chainNames(DefaultMiddlewares(nil, nil)); got != "recover,logger,metrics" {
		t.Fatalf("chain without config = %s", got)
	}
	cfg := &coreconfig.Config{RateLimit: coreconfig.RateLimitConfig{IntervalMS: 500}}
	if got := chainNames(DefaultMiddlewares(cfg, nil)); got != "recover,rate_limit,logger,metrics" {
		t.Fatalf("chain with rate limit = %s", got)
	}
}

func TestDispatcherOptionsFromSenderConfig(t *testing.T) {
	opts := DispatcherOptions(coreconfig.SenderConfig{QueueSize: 8, Workers: 2, MaxRetries: 1, RetryBackoffMS: 250})
	if opts.QueueSize != 8 || opts.Workers != 2 || opts.MaxRetries != 1 || opts.RetryBackoff != 250*time.Millisecond {
		t.Fatalf("unexpected options %+v", opts)
	}
}
