package gather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"quantbench/internal/domain"
	"quantbench/internal/store"
	"quantbench/internal/util"
)

var _ store.BarReader = (*AlpacaSource)(nil)

// cryptoBarsClient is the part of *marketdata.Client the source uses.
type cryptoBarsClient interface {
	GetCryptoBars(symbol string, req marketdata.GetCryptoBarsRequest) ([]marketdata.CryptoBar, error)
}

// AlpacaSource reads daily crypto bars from the Alpaca market-data API.
// Calls are rate limited and retried with exponential backoff.
type AlpacaSource struct {
	client     cryptoBarsClient
	limiter    *util.RateLimiter
	maxRetries int
	baseDelay  time.Duration
	log        *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource with the given credentials. An
// empty dataURL uses the client default.
func NewAlpacaSource(apiKey, apiSecret, dataURL string, rateLimitPerMin, maxRetries int, log *slog.Logger) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return newAlpacaSource(marketdata.NewClient(opts), util.NewRateLimiter(rateLimitPerMin), maxRetries, log)
}

func newAlpacaSource(client cryptoBarsClient, limiter *util.RateLimiter, maxRetries int, log *slog.Logger) *AlpacaSource {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &AlpacaSource{
		client:     client,
		limiter:    limiter,
		maxRetries: maxRetries,
		baseDelay:  time.Second,
		log:        log.With("component", "alpaca"),
	}
}

// ReadBars fetches daily bars for symbol within [start, end]. A symbol
// without a quote currency is priced in USD ("BTC" becomes "BTC/USD").
func (s *AlpacaSource) ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	pair := CryptoPair(symbol)
	var raw []marketdata.CryptoBar

	attempt := 0
	err := util.Retry(ctx, s.maxRetries, s.baseDelay, func() error {
		attempt++
		if err := s.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		bars, err := s.client.GetCryptoBars(pair, marketdata.GetCryptoBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
		})
		if err != nil {
			s.log.Warn("GetCryptoBars failed", "symbol", pair, "attempt", attempt, "err", err)
			return err
		}
		raw = bars
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("GetCryptoBars %s: %w", pair, err)
	}

	out := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		ts := ab.Timestamp.UTC()
		if ts.Before(start) || ts.After(end) {
			continue
		}
		if n := len(out); n > 0 && !ts.After(out[n-1].Timestamp) {
			s.log.Warn("dropping out-of-order bar", "symbol", pair, "ts", ts)
			continue
		}
		out = append(out, domain.Bar{
			Symbol:    symbol,
			Timestamp: ts,
			Open:      ab.Open,
			High:      ab.High,
			Low:       ab.Low,
			Close:     ab.Close,
			Volume:    ab.Volume,
		})
	}
	out = store.ValidBars(s.log, out)
	s.log.Debug("fetched bars", "symbol", pair, "bars", len(out), "attempts", attempt)
	return out, nil
}

// CryptoPair normalizes a symbol to Alpaca's BASE/QUOTE form.
func CryptoPair(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(s, "/") {
		return s
	}
	for _, quote := range []string{"USDT", "USDC", "USD"} {
		if base, ok := strings.CutSuffix(s, quote); ok && base != "" {
			return base + "/" + quote
		}
	}
	return s + "/USD"
}
