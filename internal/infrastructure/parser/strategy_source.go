package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"ProductImporter/internal/config"
	"ProductImporter/internal/domain"
	"ProductImporter/internal/ports"
	"ProductImporter/internal/scanner"
)

// ErrAllSourcesFailed is returned when not a single chain could be scanned.
var ErrAllSourcesFailed = errors.New("every configured chain failed")

// StrategySource implements ObservationSource via registered scanner strategies.
type StrategySource struct {
	registry    *scanner.Registry
	chains      []config.ChainConfig
	concurrency int
	logger      *slog.Logger
}

var _ ports.ObservationSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined chains.
func NewStrategySource(reg *scanner.Registry, chains []config.ChainConfig, concurrency int, log *slog.Logger) *StrategySource {
	if concurrency < 1 {
		concurrency = 1
	}
	return &StrategySource{
		registry:    reg,
		chains:      chains,
		concurrency: concurrency,
		logger:      log,
	}
}

// Fetch scans every chain. A failing chain is reported in FetchReport.Failed and the
// others still contribute; observations keep configuration order regardless of timing.
func (s *StrategySource) Fetch(ctx context.Context) (ports.FetchReport, error) {
	if s.registry == nil {
		return ports.FetchReport{}, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("fetch chains", "chains", len(s.chains), "concurrency", s.concurrency)

	perChain := make([][]domain.RawObservation, len(s.chains))
	failures := make([]error, len(s.chains))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, chain := range s.chains {
		g.Go(func() error {
			results, err := s.scanChain(gctx, chain)
			if err != nil {
				failures[i] = err
				return nil
			}
			perChain[i] = results
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return ports.FetchReport{}, fmt.Errorf("fetch chains: %w", err)
	}

	var report ports.FetchReport
	var errs []error
	for i, chain := range s.chains {
		if failures[i] != nil {
			s.warn("chain failed", "chain", chain.Name, "error", failures[i])
			report.Failed = append(report.Failed, chain.Name)
			errs = append(errs, failures[i])
			continue
		}
		report.Observations = append(report.Observations, perChain[i]...)
	}

	if len(s.chains) > 0 && len(report.Failed) == len(s.chains) {
		return report, fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
	}

	s.debug("strategy source done", "observations", len(report.Observations), "failed", len(report.Failed))
	return report, nil
}

func (s *StrategySource) scanChain(ctx context.Context, chain config.ChainConfig) ([]domain.RawObservation, error) {
	s.debug("process chain", "chain", chain.Name, "scanner", chain.Scanner, "feeds", len(chain.Feeds))
	strategy, err := s.registry.Resolve(chain.Scanner)
	if err != nil {
		return nil, fmt.Errorf("chain %s: %w", chain.Name, err)
	}

	req := scanner.Request{
		SourceName: chain.Name,
		Options:    chain.Options,
		Feeds:      toScannerFeeds(chain.Feeds),
	}

	results, err := strategy.Scan(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("scan chain %s: %w", chain.Name, err)
	}

	for i := range results {
		if results[i].SourceName == "" {
			results[i].SourceName = chain.Name
		}
	}
	s.debug("chain produced observations", "chain", chain.Name, "count", len(results))
	return results, nil
}

func toScannerFeeds(cfg []config.FeedConfig) []scanner.Feed {
	feeds := make([]scanner.Feed, 0, len(cfg))
	for _, feed := range cfg {
		feeds = append(feeds, scanner.Feed{
			Name: feed.Name,
			URL:  feed.URL,
		})
	}
	return feeds
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
