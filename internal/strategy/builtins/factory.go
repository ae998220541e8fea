package builtins

import (
	"fmt"
	"time"

	"quantbench/internal/config"
	"quantbench/internal/strategy"
	"quantbench/internal/util"
)

// Strategy kinds accepted in configuration.
const (
	KindSMATrend            = "sma-trend"
	KindMovingAverage       = "moving-average"
	KindMovingAverageVolume = "moving-average-volume"
	KindMeanReversion       = "mean-reversion"
	KindMeanReversionVolume = "mean-reversion-volume"
	KindRSIBollinger        = "rsi-bollinger"
)

// Kinds lists every built-in strategy kind.
func Kinds() []string {
	return []string{
		KindSMATrend,
		KindMovingAverage,
		KindMovingAverageVolume,
		KindMeanReversion,
		KindMeanReversionVolume,
		KindRSIBollinger,
	}
}

// Default windows, in days, when a configuration leaves them out.
const (
	defaultWindow      = 20 * 24 * time.Hour
	defaultShortWindow = 20 * 24 * time.Hour
	defaultLongWindow  = 50 * 24 * time.Hour
	defaultRSIWindow   = 60 * 24 * time.Hour
	defaultSensitivity = 10
)

// Build constructs the strategy described by cfg. Errors wrap
// config.ErrInvalidConfig.
func Build(cfg config.StrategyConfig) (strategy.Strategy, error) {
	window, err := windowOr(cfg.Window, defaultWindow)
	if err != nil {
		return nil, err
	}
	short, err := windowOr(cfg.ShortWindow, defaultShortWindow)
	if err != nil {
		return nil, err
	}
	long, err := windowOr(cfg.LongWindow, defaultLongWindow)
	if err != nil {
		return nil, err
	}

	if (cfg.Kind == KindMovingAverage || cfg.Kind == KindMovingAverageVolume) && short >= long {
		return nil, fmt.Errorf("%w: short window %v not below long window %v", config.ErrInvalidConfig, short, long)
	}

	var s strategy.Strategy
	switch cfg.Kind {
	case KindSMATrend:
		sens := cfg.Sensitivity
		if sens == 0 {
			sens = defaultSensitivity
		}
		s = NewSMATrend(window, sens)
	case KindMovingAverage:
		s = NewMovingAverage(short, long)
	case KindMovingAverageVolume:
		s = NewMovingAverageVolume(short, long)
	case KindMeanReversion:
		s = NewMeanReversion(window)
	case KindMeanReversionVolume:
		s = NewMeanReversionVolume(window)
	case KindRSIBollinger:
		rb, err := buildRSIBollinger(cfg)
		if err != nil {
			return nil, err
		}
		s = rb
	default:
		return nil, fmt.Errorf("%w: unknown strategy kind %q", config.ErrInvalidConfig, cfg.Kind)
	}

	if cfg.Name != "" && cfg.Name != s.Name() {
		s = named{Strategy: s, name: cfg.Name}
	}
	return s, nil
}

func buildRSIBollinger(cfg config.StrategyConfig) (*RSIBollinger, error) {
	window, err := windowOr(cfg.Window, defaultRSIWindow)
	if err != nil {
		return nil, err
	}
	s := NewRSIBollinger(window)
	if cfg.RSIPeriod != 0 {
		s.RSIPeriod = cfg.RSIPeriod
	}
	if cfg.BBPeriod != 0 {
		s.BBPeriod = cfg.BBPeriod
	}
	if cfg.BBStdDev != 0 {
		s.BBStdDev = cfg.BBStdDev
	}
	if cfg.Oversold != 0 {
		s.Oversold = cfg.Oversold
	}
	if cfg.Overbought != 0 {
		s.Overbought = cfg.Overbought
	}
	if cfg.VolumeThreshold != 0 {
		s.VolumeThreshold = cfg.VolumeThreshold
	}

	switch {
	case s.RSIPeriod < 2 || s.BBPeriod < 2:
		return nil, fmt.Errorf("%w: rsi-bollinger periods must be at least 2", config.ErrInvalidConfig)
	case s.BBStdDev <= 0:
		return nil, fmt.Errorf("%w: rsi-bollinger bb_std must be positive", config.ErrInvalidConfig)
	case s.Oversold <= 0 || s.Overbought >= 100 || s.Oversold >= s.Overbought:
		return nil, fmt.Errorf("%w: rsi-bollinger thresholds %v/%v", config.ErrInvalidConfig, s.Oversold, s.Overbought)
	case s.VolumeThreshold < 0:
		return nil, fmt.Errorf("%w: rsi-bollinger volume_threshold %v", config.ErrInvalidConfig, s.VolumeThreshold)
	}
	return s, nil
}

func windowOr(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := util.ParseWindow(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	return d, nil
}

// NewRegistry builds and registers every configured strategy, in order.
func NewRegistry(cfgs []config.StrategyConfig) (*strategy.Registry, error) {
	reg := strategy.NewRegistry()
	for _, c := range cfgs {
		s, err := Build(c)
		if err != nil {
			return nil, fmt.Errorf("strategy %q: %w", c.Label(), err)
		}
		if _, dup := reg.Get(s.Name()); dup {
			return nil, fmt.Errorf("%w: duplicate strategy name %q", config.ErrInvalidConfig, s.Name())
		}
		reg.Register(s)
	}
	return reg, nil
}
