package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"quantbench/internal/domain"
	"quantbench/internal/ledger"
	"quantbench/internal/metrics"
	"quantbench/internal/store"
)

var (
	ErrNoAlgorithms       = errors.New("strategy: no algorithms registered")
	ErrNoPriceData        = errors.New("strategy: provider returned no price data")
	ErrNoTradingMoments   = errors.New("strategy: no trading moments in range")
	ErrZeroBaseline       = errors.New("strategy: baseline valuation is not positive")
	ErrInsufficientMargin = errors.New("strategy: margin days shorter than algorithm lookback")
	ErrUnorderedBars      = errors.New("strategy: bars not strictly ascending")
	ErrInvalidParams      = errors.New("strategy: invalid backtest parameters")
)

// DefaultProgressEvery is how many moments pass between progress log lines.
const DefaultProgressEvery = 10000

// AlgorithmError reports a failure of one algorithm at one moment. Any such
// failure aborts the run.
type AlgorithmError struct {
	Algorithm string
	Moment    time.Time
	Err       error
}

func (e *AlgorithmError) Error() string {
	return fmt.Sprintf("algorithm %s at %s: %v", e.Algorithm, e.Moment.Format(time.RFC3339), e.Err)
}

func (e *AlgorithmError) Unwrap() error { return e.Err }

// Params configures a single backtest run.
type Params struct {
	Symbol string
	From   time.Time
	To     time.Time

	// MarginDays widens the fetch window on both sides. Zero derives it from
	// the longest algorithm lookback.
	MarginDays int

	// MaxTradeCash caps the cash value moved by one buy or sell.
	MaxTradeCash float64

	// Seed is every algorithm's starting allocation.
	Seed domain.Assets

	// Workers > 1 evaluates algorithms concurrently.
	Workers int

	// ProgressEvery sets the progress log interval; zero uses the default.
	ProgressEvery int
}

// Validate checks the parameters that do not depend on the registry.
func (p Params) Validate() error {
	switch {
	case p.Symbol == "":
		return fmt.Errorf("%w: empty symbol", ErrInvalidParams)
	case p.To.Before(p.From):
		return fmt.Errorf("%w: to %s before from %s", ErrInvalidParams, p.To.Format(time.RFC3339), p.From.Format(time.RFC3339))
	case p.MarginDays < 0:
		return fmt.Errorf("%w: negative margin days %d", ErrInvalidParams, p.MarginDays)
	case p.MaxTradeCash < 0 || math.IsNaN(p.MaxTradeCash):
		return fmt.Errorf("%w: max trade cash %v", ErrInvalidParams, p.MaxTradeCash)
	case p.Seed.Cash < 0 || p.Seed.AssetUnits < 0:
		return fmt.Errorf("%w: negative seed %+v", ErrInvalidParams, p.Seed)
	}
	return nil
}

// MarginDaysFor returns the whole number of days covering lookback.
func MarginDaysFor(lookback time.Duration) int {
	if lookback <= 0 {
		return 0
	}
	return int(math.Ceil(lookback.Hours() / 24))
}

// Backtester replays a historical price series through every registered
// strategy and tracks each one's simulated holdings.
type Backtester struct {
	bars     store.BarReader
	registry *Registry
	log      *slog.Logger
}

// NewBacktester creates a Backtester that reads bars from the given provider
// and evaluates the strategies in the provided registry. A nil logger uses
// the default.
func NewBacktester(bars store.BarReader, registry *Registry, log *slog.Logger) *Backtester {
	if log == nil {
		log = slog.Default()
	}
	return &Backtester{
		bars:     bars,
		registry: registry,
		log:      log.With("component", "backtest"),
	}
}

// Run fetches [From-margin, To+margin], evaluates every strategy at each bar
// inside [From, To] and applies the estimates to per-strategy holdings. The
// first record is a synthetic hold at the first moment with every holding at
// its seed.
func (bt *Backtester) Run(ctx context.Context, p Params) (*domain.Run, error) {
	run, err := bt.run(ctx, p)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RunsTotal.WithLabelValues(p.Symbol, outcome).Inc()
	return run, err
}

func (bt *Backtester) run(ctx context.Context, p Params) (*domain.Run, error) {
	started := time.Now()

	if bt.registry == nil || bt.registry.Len() == 0 {
		return nil, ErrNoAlgorithms
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	required := MarginDaysFor(bt.registry.MaxLookback())
	margin := p.MarginDays
	if margin == 0 {
		margin = required
	} else if margin < required {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientMargin, margin, required)
	}

	fetchStart := p.From.AddDate(0, 0, -margin)
	fetchEnd := p.To.AddDate(0, 0, margin)
	fetchAt := time.Now()
	bars, err := bt.bars.ReadBars(ctx, p.Symbol, fetchStart, fetchEnd)
	if err != nil {
		return nil, fmt.Errorf("reading bars for %s: %w", p.Symbol, err)
	}
	metrics.BarsFetched.WithLabelValues(p.Symbol).Add(float64(len(bars)))
	bt.log.Info("fetched bars",
		"symbol", p.Symbol,
		"bars", len(bars),
		"start", fetchStart.Format(time.DateOnly),
		"end", fetchEnd.Format(time.DateOnly),
		"elapsed", time.Since(fetchAt),
	)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s in [%s, %s]", ErrNoPriceData, p.Symbol,
			fetchStart.Format(time.RFC3339), fetchEnd.Format(time.RFC3339))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: %s follows %s", ErrUnorderedBars,
				bars[i].Timestamp.Format(time.RFC3339), bars[i-1].Timestamp.Format(time.RFC3339))
		}
	}

	moments := tradingMoments(bars, p.From, p.To)
	if len(moments) == 0 {
		return nil, fmt.Errorf("%w: %s in [%s, %s]", ErrNoTradingMoments, p.Symbol,
			p.From.Format(time.RFC3339), p.To.Format(time.RFC3339))
	}
	bt.log.Info("trading moments", "symbol", p.Symbol, "moments", len(moments))

	baseline := ledger.Valuation(p.Seed, bars[moments[0]])
	if !(baseline > 0) || math.IsInf(baseline, 0) {
		return nil, fmt.Errorf("%w: %v", ErrZeroBaseline, baseline)
	}

	strategies := bt.registry.All()

	estimateAt := time.Now()
	estimates, err := bt.estimate(ctx, p, strategies, bars, moments)
	if err != nil {
		return nil, err
	}
	bt.log.Info("estimates computed", "algorithms", len(strategies), "workers", max(p.Workers, 1), "elapsed", time.Since(estimateAt))

	simulateAt := time.Now()
	records, curves := simulate(p, strategies, bars, moments, estimates, baseline)
	bt.log.Info("simulation complete", "records", len(records), "elapsed", time.Since(simulateAt))

	names := bt.registry.List()
	run := &domain.Run{
		ID:           uuid.New(),
		Symbol:       p.Symbol,
		From:         p.From,
		To:           p.To,
		MarginDays:   margin,
		MaxTradeCash: p.MaxTradeCash,
		Seed:         p.Seed,
		Algorithms:   names,
		Records:      records,
		Summaries:    summarize(names, records, curves),
		StartedAt:    started,
		Duration:     time.Since(started),
	}

	for _, s := range run.Summaries {
		metrics.FinalValuationDifference.WithLabelValues(p.Symbol, s.Name).Set(s.ValuationDifference)
		bt.log.Info("algorithm summary",
			"algorithm", s.Name,
			"valuation", s.FinalValuation,
			"difference", s.ValuationDifference,
			"max_drawdown", s.MaxDrawdown,
			"sharpe", s.SharpeRatio,
			"buys", s.Buys,
			"sells", s.Sells,
		)
	}
	return run, nil
}

// tradingMoments returns the indices of bars inside [from, to].
func tradingMoments(bars []domain.Bar, from, to time.Time) []int {
	var idx []int
	for i := range bars {
		ts := bars[i].Timestamp
		if ts.Before(from) || ts.After(to) {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

// estimate evaluates every strategy at every moment. The result is indexed
// [strategy][moment]. Strategies run concurrently when p.Workers > 1; each
// goroutine owns one row of the result.
func (bt *Backtester) estimate(ctx context.Context, p Params, strategies []Strategy, bars []domain.Bar, moments []int) ([][]domain.Estimate, error) {
	out := make([][]domain.Estimate, len(strategies))

	if p.Workers <= 1 {
		for i, s := range strategies {
			row, err := bt.estimateOne(ctx, p, s, bars, moments)
			if err != nil {
				return nil, err
			}
			out[i] = row
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Workers)
	for i, s := range strategies {
		g.Go(func() error {
			row, err := bt.estimateOne(gctx, p, s, bars, moments)
			if err != nil {
				return err
			}
			out[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (bt *Backtester) estimateOne(ctx context.Context, p Params, s Strategy, bars []domain.Bar, moments []int) ([]domain.Estimate, error) {
	every := p.ProgressEvery
	if every <= 0 {
		every = DefaultProgressEvery
	}
	name := s.Name()
	counts := make(map[domain.SignalType]int, 3)

	start := time.Now()
	row := make([]domain.Estimate, len(moments))
	for mi, bi := range moments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		asOf := bars[bi].Timestamp
		est, err := evaluate(s, bars, asOf)
		if err != nil {
			return nil, &AlgorithmError{Algorithm: name, Moment: asOf, Err: err}
		}
		row[mi] = est
		counts[est.Signal]++

		if (mi+1)%every == 0 {
			bt.log.Info("estimating",
				"algorithm", name,
				"progress", mi+1,
				"total", len(moments),
				"elapsed", time.Since(start),
			)
		}
	}

	metrics.EstimateSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
	for sig, n := range counts {
		metrics.EstimatesTotal.WithLabelValues(name, string(sig)).Add(float64(n))
	}
	return row, nil
}

// evaluate calls s.Estimate, turning a panic or an out-of-range estimate into
// an error.
func evaluate(s Strategy, history []domain.Bar, asOf time.Time) (est domain.Estimate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	est, err = s.Estimate(history, asOf)
	if err != nil {
		return domain.Estimate{}, err
	}
	if err := est.Validate(); err != nil {
		return domain.Estimate{}, err
	}
	return est, nil
}

// simulate runs the ledger over the precomputed estimates in moment order.
// It returns the records and, per strategy, the unrounded valuation curve
// starting with the baseline.
func simulate(p Params, strategies []Strategy, bars []domain.Bar, moments []int, estimates [][]domain.Estimate, baseline float64) ([]domain.TradeResult, [][]float64) {
	holdings := make([]domain.Assets, len(strategies))
	curves := make([][]float64, len(strategies))
	for i := range holdings {
		holdings[i] = p.Seed
		curves[i] = make([]float64, 0, len(moments)+1)
		curves[i] = append(curves[i], baseline)
	}

	records := make([]domain.TradeResult, 0, len(moments)+1)

	first := bars[moments[0]]
	initial := domain.TradeResult{
		Date:       first.Timestamp,
		ClosePrice: first.Close,
		Volume:     first.Volume,
		Initial:    true,
		Algorithms: make([]domain.AlgorithmState, len(strategies)),
	}
	for i, s := range strategies {
		initial.Algorithms[i] = domain.AlgorithmState{
			Name:      s.Name(),
			Estimate:  domain.Estimate{Signal: domain.SignalTypeHold, Confidence: 1},
			Assets:    p.Seed,
			Valuation: ledger.DisplayValuation(baseline),
		}
	}
	records = append(records, initial)

	for mi, bi := range moments {
		b := bars[bi]
		rec := domain.TradeResult{
			Date:       b.Timestamp,
			ClosePrice: b.Close,
			Volume:     b.Volume,
			Algorithms: make([]domain.AlgorithmState, len(strategies)),
		}
		for i, s := range strategies {
			est := estimates[i][mi]
			holdings[i] = ledger.ApplyEstimate(holdings[i], b, est, p.MaxTradeCash)
			v := ledger.Valuation(holdings[i], b)
			curves[i] = append(curves[i], v)
			rec.Algorithms[i] = domain.AlgorithmState{
				Name:                s.Name(),
				Estimate:            est,
				Assets:              holdings[i],
				Valuation:           ledger.DisplayValuation(v),
				ValuationDifference: ledger.ValuationDifference(v, baseline),
			}
		}
		records = append(records, rec)
	}
	return records, curves
}
