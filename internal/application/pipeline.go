package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bnema/truck-load-watch/internal/domain"
	"github.com/bnema/truck-load-watch/internal/ports"
)

const (
	DefaultHoursStart = 6
	DefaultHoursEnd   = 18
)

// OperatingHours is an inclusive hour window in a given location.
type OperatingHours struct {
	Location *time.Location
	Start    int
	End      int
}

func (h OperatingHours) Contains(t time.Time) bool {
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	hour := t.In(loc).Hour()
	return hour >= h.Start && hour <= h.End
}

type SubmitField struct {
	Name  string
	Value string
}

type PipelineConfig struct {
	Hours                 OperatingHours
	DefaultDailyThreshold int
	// ExtraSubmitFields are appended to the scraped form on every acceptance.
	ExtraSubmitFields []SubmitField
}

type PipelineDeps struct {
	Store     ports.Store
	Sessions  *SessionService
	Quota     *QuotaTracker
	Market    ports.MarketClient
	Extractor ports.ListingExtractor
	Notifier  ports.Notifier
	Clock     ports.Clock
	Logger    *slog.Logger
}

type Pipeline struct {
	store     ports.Store
	sessions  *SessionService
	quota     *QuotaTracker
	market    ports.MarketClient
	extractor ports.ListingExtractor
	notifier  ports.Notifier
	clock     ports.Clock
	logger    *slog.Logger
	cfg       PipelineConfig

	mu sync.Mutex
}

func NewPipeline(deps PipelineDeps, cfg PipelineConfig) *Pipeline {
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Quota == nil {
		deps.Quota = NewQuotaTracker(deps.Store, deps.Clock)
	}
	if cfg.DefaultDailyThreshold < 0 {
		cfg.DefaultDailyThreshold = domain.DefaultDailyThreshold
	}

	return &Pipeline{
		store:     deps.Store,
		sessions:  deps.Sessions,
		quota:     deps.Quota,
		market:    deps.Market,
		extractor: deps.Extractor,
		notifier:  deps.Notifier,
		clock:     deps.Clock,
		logger:    deps.Logger,
		cfg:       cfg,
	}
}

// RunCycle performs one poll cycle. Transient fetch failures are reported
// as an aborted result with a nil error; auth, parse and store failures are
// returned.
func (p *Pipeline) RunCycle(ctx context.Context) (domain.CycleResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cycleID := CycleIDFrom(ctx)
	logger := p.logger.With("cycle", cycleID)

	now := p.clock.Now()
	if !p.cfg.Hours.Contains(now) {
		logger.DebugContext(ctx, "outside operating hours", "now", now)
		return domain.Skipped(domain.ReasonOutsideHours), nil
	}

	settings, err := p.loadSettings(ctx, logger)
	if err != nil {
		return domain.CycleResult{}, err
	}
	if !settings.Enabled {
		return domain.Skipped(domain.ReasonDisabled), nil
	}

	remaining, err := p.quota.Remaining(ctx, settings)
	if err != nil {
		return domain.CycleResult{}, err
	}
	if remaining <= 0 {
		return domain.Skipped(domain.ReasonThresholdMet), nil
	}

	session, err := p.sessions.EnsureSession(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrFetch) {
			logger.WarnContext(ctx, "market login unreachable", "error", err)
			return domain.Aborted(err.Error()), nil
		}
		return domain.CycleResult{}, fmt.Errorf("ensure session: %w", err)
	}

	document, err := p.market.FetchListing(ctx, session)
	if err != nil {
		if errors.Is(err, domain.ErrFetch) {
			logger.WarnContext(ctx, "fetch listing failed", "error", err)
			return domain.Aborted(err.Error()), nil
		}
		if errors.Is(err, domain.ErrAuth) {
			if invalidateErr := p.sessions.Invalidate(ctx); invalidateErr != nil {
				logger.WarnContext(ctx, "invalidate session failed", "error", invalidateErr)
			}
		}
		return domain.CycleResult{}, fmt.Errorf("fetch listing: %w", err)
	}

	listing, err := p.extractor.Extract(document)
	if err != nil {
		return domain.CycleResult{}, fmt.Errorf("extract listing: %w", err)
	}

	rules, err := p.loadRules(ctx, logger)
	if err != nil {
		return domain.CycleResult{}, err
	}

	selected, err := p.selectOffers(ctx, listing.Offers, rules, remaining)
	if err != nil {
		return domain.CycleResult{}, err
	}
	logger.DebugContext(ctx, "evaluated listing", "offers", len(listing.Offers), "selected", len(selected), "remaining", remaining)
	if len(selected) == 0 {
		return domain.NoNewLoads(), nil
	}

	if err := p.market.SubmitAcceptance(ctx, session, p.acceptanceFields(listing.Fields, selected)); err != nil {
		logger.ErrorContext(ctx, "acceptance submission rejected", "error", err, "loads", externalIDs(selected))
	}

	acceptedAt := p.clock.Now()
	loads := make([]domain.AcceptedLoad, 0, len(selected))
	for _, offer := range selected {
		loads = append(loads, domain.NewAcceptedLoad(offer, acceptedAt))
	}
	if err := p.store.SaveAccepted(ctx, loads); err != nil {
		return domain.CycleResult{}, fmt.Errorf("save accepted loads: %w", err)
	}

	if p.notifier != nil {
		if err := p.notifier.Notify(ctx, domain.AcceptanceNotice{CycleID: cycleID, Loads: loads}); err != nil {
			logger.WarnContext(ctx, "notify acceptance failed", "error", err)
		}
	}

	logger.InfoContext(ctx, "accepted loads", "count", len(loads), "loads", externalIDs(selected))
	return domain.Accepted(loads), nil
}

func (p *Pipeline) loadSettings(ctx context.Context, logger *slog.Logger) (domain.WatcherSettings, error) {
	settings, err := p.store.GetSettings(ctx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, domain.ErrSettingsNotFound) {
		return domain.WatcherSettings{}, fmt.Errorf("get watcher settings: %w", err)
	}

	settings, err = p.store.InitSettings(ctx, domain.DefaultWatcherSettings(p.cfg.DefaultDailyThreshold))
	if err != nil {
		return domain.WatcherSettings{}, fmt.Errorf("initialize watcher settings: %w", err)
	}
	logger.InfoContext(ctx, "initialized watcher settings", "daily_threshold", settings.DailyThreshold)
	return settings, nil
}

func (p *Pipeline) loadRules(ctx context.Context, logger *slog.Logger) (domain.MatchingRules, error) {
	rules, err := p.store.GetRules(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrRulesNotFound) {
			return domain.MatchingRules{}, fmt.Errorf("get matching rules: %w", err)
		}
		logger.DebugContext(ctx, "no matching rules configured")
		return domain.MatchingRules{}, nil
	}
	return rules.Normalize(), nil
}

func (p *Pipeline) selectOffers(ctx context.Context, offers []domain.LoadOffer, rules domain.MatchingRules, remaining int) ([]domain.LoadOffer, error) {
	selected := make([]domain.LoadOffer, 0, remaining)
	seen := make(map[string]struct{}, len(offers))
	for _, offer := range offers {
		if len(selected) >= remaining {
			break
		}
		if _, ok := seen[offer.ExternalID]; ok {
			continue
		}
		seen[offer.ExternalID] = struct{}{}

		accepted, err := p.store.IsAccepted(ctx, offer.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("check accepted load %s: %w", offer.ExternalID, err)
		}
		if accepted || !rules.Matches(offer) {
			continue
		}
		selected = append(selected, offer)
	}

	return selected, nil
}

func (p *Pipeline) acceptanceFields(scraped domain.HiddenFields, selected []domain.LoadOffer) domain.HiddenFields {
	fields := scraped.Clone()
	for _, offer := range selected {
		fields.Set(offer.AcceptActionToken, domain.TextValue(domain.AcceptActionValue))
	}
	for _, extra := range p.cfg.ExtraSubmitFields {
		fields.Set(extra.Name, domain.TextValue(extra.Value))
	}
	return fields
}

func externalIDs(offers []domain.LoadOffer) string {
	ids := make([]string, 0, len(offers))
	for _, offer := range offers {
		ids = append(ids, offer.ExternalID)
	}
	return strings.Join(ids, ",")
}
