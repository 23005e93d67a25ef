package tracker

import (
	"fmt"
	"strings"
	"time"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/confidence"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/eval"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/feedback"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/logging"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/metrics"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/state"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/update"
	"go.uber.org/zap"
)

const recentLimit = 10

// #region tracker
// Tracker maintains per-city action weights from the feedback ledger and
// adjusts confidence scores with them.
type Tracker struct {
	repo     state.Repository
	cfg      update.Config
	adjuster *confidence.Adjuster
	harness  *eval.EvalHarness
	logger   *zap.Logger
	now      func() time.Time
	locks    cityLocks
}

// New creates a Tracker over repo.
func New(repo state.Repository, opts Options) (*Tracker, error) {
	if opts.Update.ActionCount == 0 {
		opts.Update = update.DefaultConfig()
	}
	if len(opts.Policy.Buckets) == 0 {
		opts.Policy = confidence.DefaultPolicy()
	}
	if err := opts.Update.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		repo:     repo,
		cfg:      opts.Update,
		adjuster: confidence.NewAdjuster(opts.Policy),
		harness:  eval.NewEvalHarness(eval.ConfigFrom(opts.Update)),
		logger:   opts.Logger,
		now:      opts.Now,
	}, nil
}

// UpdateConfig returns the weight update parameters in use.
func (t *Tracker) UpdateConfig() update.Config {
	return t.cfg
}
// #endregion tracker

// #region apply-feedback
// ApplyFeedback folds ev into its city's weights. The ledger append and the
// weight overwrite commit together; on error neither is durable.
func (t *Tracker) ApplyFeedback(ev feedback.Event) (Result, error) {
	start := t.now()
	if err := ev.Validate(); err != nil {
		metrics.FeedbackErrors.WithLabelValues("validate").Inc()
		return Result{}, err
	}
	key, _ := feedback.NormalizeCity(ev.City)
	ev.City = key
	if ev.Timestamp.IsZero() {
		ev.Timestamp = start
	}
	ev.Timestamp = ev.Timestamp.UTC()

	unlock := t.locks.lock(key)
	defer unlock()

	old, seen, err := t.repo.Load(key)
	if err != nil {
		metrics.FeedbackErrors.WithLabelValues("load").Inc()
		return Result{}, fmt.Errorf("apply feedback: %w", err)
	}
	if !seen {
		old = state.NewCityWeightState(key, t.cfg.ActionCount)
	}

	res := update.Apply(old, ev, t.cfg)
	if check := t.harness.Run(res.NewState); !check.Passed {
		metrics.FeedbackErrors.WithLabelValues("eval").Inc()
		return Result{}, fmt.Errorf("apply feedback: %s state rejected: %s", key, check.Reason)
	}

	id, err := t.repo.CommitFeedback(ev, res.NewState)
	if err != nil {
		metrics.FeedbackErrors.WithLabelValues("commit").Inc()
		return Result{}, fmt.Errorf("apply feedback: %w", err)
	}

	rate := res.NewState.ApprovalRate()
	mult := t.adjuster.Policy().Multiplier(rate)
	trail := t.auditTrail(ev, id, res, rate, mult)

	entry := logging.AdaptationEntry{
		EventID:      id,
		CaseID:       ev.CaseID,
		City:         key,
		Polarity:     string(ev.Polarity),
		ApprovalRate: rate,
		Multiplier:   mult,
		AuditTrail:   trail,
		CreatedAt:    ev.Timestamp,
	}
	if res.Change.Applied {
		entry.Action = res.Change.Action
		entry.OldWeight = res.Change.OldWeight
		entry.NewWeight = res.Change.NewWeight
	}
	if err := t.repo.LogAdaptation(entry); err != nil {
		t.logger.Warn("adaptation log write failed", zap.String("event_id", id), zap.Error(err))
	}

	outcome := "count_only"
	if res.Change.Applied {
		outcome = "adjusted"
	}
	metrics.FeedbackEvents.WithLabelValues(string(ev.Polarity), outcome).Inc()
	metrics.ApprovalRate.Observe(rate)
	metrics.ApplyDuration.Observe(t.now().Sub(start).Seconds())

	t.logger.Info("feedback applied",
		zap.String("event_id", id),
		zap.String("case_id", ev.CaseID),
		zap.String("city", key),
		zap.String("polarity", string(ev.Polarity)),
		zap.String("decision", res.Decision.Reason),
		zap.Float64("approval_rate", rate),
	)

	return Result{
		EventID:      id,
		State:        res.NewState,
		Change:       res.Change,
		ApprovalRate: rate,
		Multiplier:   mult,
		AuditTrail:   trail,
	}, nil
}

func (t *Tracker) auditTrail(ev feedback.Event, id string, res update.Result, rate, mult float64) []string {
	st := res.NewState
	trail := []string{
		fmt.Sprintf("[%s] Processing feedback for case %s", ev.Timestamp.Format(time.RFC3339), ev.CaseID),
		fmt.Sprintf("Feedback recorded in ledger as %s", id),
	}
	if ev.Polarity == feedback.Approve {
		trail = append(trail, "Positive feedback: reinforcing the recommended action")
	} else {
		trail = append(trail, "Negative feedback: penalizing the recommended action")
	}

	switch {
	case res.Change.Applied:
		a := *res.Change.Action
		trail = append(trail,
			fmt.Sprintf("Inferred action: %s (%d)", t.cfg.Label(a), a),
			fmt.Sprintf("Weight change: %.3f → %.3f", res.Change.OldWeight, res.Change.NewWeight),
		)
	case ev.Action != nil:
		trail = append(trail, fmt.Sprintf("Action %d outside the %d tracked actions, weights unchanged", *ev.Action, len(st.ActionWeights)))
	default:
		trail = append(trail, "Inferred action: unknown, weights unchanged")
	}

	return append(trail,
		fmt.Sprintf("City approval rate: %.1f%% (%d of %d cases)", rate*100, st.ApproveCount, st.Total()),
		fmt.Sprintf("Confidence adjustment factor: %.2f", mult),
		fmt.Sprintf("Weight state saved for %s", st.City),
	)
}
// #endregion apply-feedback

// #region adjust-confidence
// AdjustConfidence scales base by the city's approval history. actionHint is
// accepted for callers that pass applied rule identifiers; it does not change
// the result.
func (t *Tracker) AdjustConfidence(base float64, city string, actionHint []string) (float64, string, error) {
	d, err := t.Decide(base, city, actionHint)
	if err != nil {
		return 0, "", err
	}
	return d.Adjusted, d.Explanation, nil
}

// Decide is AdjustConfidence with the full decision. It takes no per-city
// lock and may observe state that a concurrent ApplyFeedback is about to replace.
func (t *Tracker) Decide(base float64, city string, actionHint []string) (confidence.Decision, error) {
	key, err := feedback.NormalizeCity(city)
	if err != nil {
		return confidence.Decision{}, err
	}
	st, seen, err := t.repo.Load(key)
	if err != nil {
		return confidence.Decision{}, fmt.Errorf("adjust confidence: %w", err)
	}
	d, err := t.adjuster.Evaluate(base, strings.TrimSpace(city), st, seen)
	if err != nil {
		return confidence.Decision{}, err
	}
	metrics.Adjustments.WithLabelValues(metrics.MultiplierLabel(d.Multiplier)).Inc()
	t.logger.Debug("confidence adjusted",
		zap.String("city", key),
		zap.Float64("base", base),
		zap.Float64("adjusted", d.Adjusted),
		zap.Strings("action_hint", actionHint),
	)
	return d, nil
}
// #endregion adjust-confidence

// #region statistics
// CityStatistics reports one city. An unseen city reports StatusNoData with
// neutral weights rather than an error.
func (t *Tracker) CityStatistics(city string) (CityStats, error) {
	key, err := feedback.NormalizeCity(city)
	if err != nil {
		return CityStats{}, err
	}
	st, seen, err := t.repo.Load(key)
	if err != nil {
		return CityStats{}, fmt.Errorf("city statistics: %w", err)
	}
	if !seen {
		fresh := state.NewCityWeightState(key, t.cfg.ActionCount)
		return CityStats{
			City:          key,
			ActionWeights: fresh.ActionWeights,
			Multiplier:    1.0,
			Status:        StatusNoData,
		}, nil
	}
	return t.stats(st), nil
}

// AllCityStatistics reports every city with state, ordered by city key.
func (t *Tracker) AllCityStatistics() ([]CityStats, error) {
	states, err := t.repo.List()
	if err != nil {
		return nil, fmt.Errorf("all city statistics: %w", err)
	}
	out := make([]CityStats, 0, len(states))
	for _, st := range states {
		out = append(out, t.stats(st))
	}
	return out, nil
}

func (t *Tracker) stats(st state.CityWeightState) CityStats {
	status := StatusLearning
	if st.Total() > 5 {
		status = StatusActive
	}
	m := 1.0
	if st.Total() > 0 {
		m = t.adjuster.Policy().Multiplier(st.ApprovalRate())
	}
	return CityStats{
		City:          st.City,
		TotalCases:    st.Total(),
		ApproveCount:  st.ApproveCount,
		RejectCount:   st.RejectCount,
		ApprovalRate:  st.ApprovalRate(),
		ActionWeights: st.ActionWeights,
		Multiplier:    m,
		Status:        status,
		UpdatedAt:     st.UpdatedAt,
	}
}

// Report aggregates all cities and the most recent adaptations.
func (t *Tracker) Report() (Report, error) {
	cities, err := t.AllCityStatistics()
	if err != nil {
		return Report{}, err
	}
	recent, err := t.repo.RecentAdaptations(recentLimit)
	if err != nil {
		return Report{}, fmt.Errorf("report: %w", err)
	}

	r := Report{
		GeneratedAt:   t.now().UTC(),
		CitiesTracked: len(cities),
		Cities:        cities,
		Recent:        recent,
		Status:        SystemWarmingUp,
	}
	for _, c := range cities {
		r.TotalFeedback += c.TotalCases
		r.TotalApprovals += c.ApproveCount
	}
	if r.TotalFeedback > 0 {
		r.OverallApprovalRate = float64(r.TotalApprovals) / float64(r.TotalFeedback)
	}
	if r.TotalFeedback > 10 {
		r.Status = SystemActive
	}
	return r, nil
}

// Summary counts every ledger event by polarity.
func (t *Tracker) Summary() (Summary, error) {
	events, err := t.repo.AllEvents()
	if err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}
	var s Summary
	for _, ev := range events {
		if ev.Polarity == feedback.Approve {
			s.Upvotes++
		} else {
			s.Downvotes++
		}
	}
	s.TotalFeedback = len(events)
	return s, nil
}

// EventsForCase returns the ledger entries for one case.
func (t *Tracker) EventsForCase(caseID string) ([]feedback.Event, error) {
	return t.repo.EventsForCase(caseID)
}

// EventsForCity returns the ledger entries for one city.
func (t *Tracker) EventsForCity(city string) ([]feedback.Event, error) {
	return t.repo.EventsForCity(city)
}
// #endregion statistics
