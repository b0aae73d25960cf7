package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/facelessdevhack/plati-rail-admin/internal/platform/apiclient"
	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
	"github.com/facelessdevhack/plati-rail-admin/internal/view"
)

const (
	recalcRunningKey = "plati:ledger:recalc:running"
	recalcOutcomeKey = "plati:ledger:recalc:outcome"
	recalcLockKey    = "plati:ledger:recalc:lock"
	recalcTokenKey   = "plati:ledger:recalc:token"
	recalcOutcomeTTL = 24 * time.Hour
	// recalcGrace keeps the running flag alive a little past the timeout ceiling so a worker
	// that is shutting down still clears it.
	recalcGrace = time.Minute
)

// RecalcBanner is shown on every page while a recalculate-all run is in flight.
const RecalcBanner = "Recalculating all dealers' balances. This can take several minutes; results will appear here when it finishes."

// RecalcRequest is handed to the queue when an operator starts a run. Token is never
// serialised: a queued run reads the operator's token from Redis once, when it starts.
type RecalcRequest struct {
	ActorID     int64     `json:"actor_id"`
	Token       string    `json:"-"`
	RequestedAt time.Time `json:"requested_at"`
}

// RecalcOutcome is stored when a run finishes, until an admin page picks it up.
type RecalcOutcome struct {
	Summary    RecalcSummary `json:"summary"`
	Error      string        `json:"error,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
}

// RecalcEnqueuer submits a recalculate-all run to the background queue.
type RecalcEnqueuer interface {
	EnqueueRecalcAll(ctx context.Context, req RecalcRequest, timeout time.Duration) error
}

// Recalculator coordinates the long recalculate-all run: one run at a time across every
// dashboard and worker process, with a hard timeout ceiling.
type Recalculator struct {
	client  *Client
	redis   *redis.Client
	locker  *redislock.Client
	queue   RecalcEnqueuer
	audit   shared.AuditRecorder
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// RecalculatorConfig groups Recalculator dependencies. Queue may be nil, in which case runs
// execute in the dashboard process.
type RecalculatorConfig struct {
	Client  *Client
	Redis   *redis.Client
	Queue   RecalcEnqueuer
	Audit   shared.AuditRecorder
	Logger  *slog.Logger
	Timeout time.Duration
}

// NewRecalculator constructs a Recalculator.
func NewRecalculator(cfg RecalculatorConfig) *Recalculator {
	if cfg.Audit == nil {
		cfg.Audit = shared.NopAudit{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Minute
	}
	return &Recalculator{
		client:  cfg.Client,
		redis:   cfg.Redis,
		locker:  redislock.New(cfg.Redis),
		queue:   cfg.Queue,
		audit:   cfg.Audit,
		logger:  cfg.Logger,
		timeout: cfg.Timeout,
		now:     time.Now,
	}
}

// Timeout is the ceiling of one run.
func (r *Recalculator) Timeout() time.Duration {
	return r.timeout
}

// Start begins a run unless one is already in flight.
func (r *Recalculator) Start(ctx context.Context, actor shared.Principal) error {
	ok, err := r.redis.SetNX(ctx, recalcRunningKey, r.now().UTC().Format(time.RFC3339), r.timeout+recalcGrace).Result()
	if err != nil {
		return fmt.Errorf("ledger: mark recalculation running: %w", err)
	}
	if !ok {
		return ErrRecalcRunning
	}
	req := RecalcRequest{ActorID: actor.UserID, Token: actor.Token, RequestedAt: r.now()}
	if err := r.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   shared.AuditAllRecalcQueued,
		Entity:   "dealer",
		EntityID: "all",
		At:       req.RequestedAt,
	}); err != nil {
		r.logger.Warn("audit record", slog.String("action", shared.AuditAllRecalcQueued), slog.Any("error", err))
	}

	if r.queue != nil {
		if err := r.redis.Set(ctx, recalcTokenKey, actor.Token, r.timeout+recalcGrace).Err(); err != nil {
			_ = r.redis.Del(context.WithoutCancel(ctx), recalcRunningKey).Err()
			return fmt.Errorf("ledger: stash recalculation credential: %w", err)
		}
		if err := r.queue.EnqueueRecalcAll(ctx, req, r.timeout); err != nil {
			_ = r.redis.Del(context.WithoutCancel(ctx), recalcRunningKey, recalcTokenKey).Err()
			return fmt.Errorf("ledger: enqueue recalculation: %w", err)
		}
		return nil
	}

	go func() {
		bg := context.WithoutCancel(ctx)
		if _, err := r.Run(bg, req); err != nil {
			r.logger.Error("recalculate all", slog.Any("error", err))
		}
	}()
	return nil
}

// Run performs one recalculate-all call under the timeout ceiling and stores its outcome.
// It is called by the worker, or in-process when no queue is configured.
func (r *Recalculator) Run(ctx context.Context, req RecalcRequest) (RecalcSummary, error) {
	lock, err := r.locker.Obtain(ctx, recalcLockKey, r.timeout+recalcGrace, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return RecalcSummary{}, ErrRecalcRunning
	}
	if err != nil {
		_ = r.redis.Del(context.WithoutCancel(ctx), recalcRunningKey).Err()
		return RecalcSummary{}, fmt.Errorf("ledger: obtain recalculation lock: %w", err)
	}
	defer func() {
		bg := context.WithoutCancel(ctx)
		_ = r.redis.Del(bg, recalcRunningKey).Err()
		_ = lock.Release(bg)
	}()

	token, err := r.token(ctx, req)
	if err != nil {
		r.storeOutcome(ctx, RecalcOutcome{Error: err.Error(), FinishedAt: r.now()})
		return RecalcSummary{}, err
	}
	runCtx, cancel := context.WithTimeout(apiclient.WithToken(ctx, token), r.timeout)
	defer cancel()

	started := r.now()
	summary, runErr := r.client.RecalculateAll(runCtx)
	outcome := RecalcOutcome{Summary: summary, FinishedAt: r.now()}
	if runErr != nil {
		if errors.Is(runErr, context.DeadlineExceeded) {
			runErr = fmt.Errorf("ledger: recalculation exceeded %s: %w", r.timeout, runErr)
		}
		outcome.Error = runErr.Error()
	}
	r.logger.Info("recalculate all finished",
		slog.Int("total", summary.TotalDealers),
		slog.Int("successful", len(summary.Successful)),
		slog.Int("failed", len(summary.Failed)),
		slog.Duration("elapsed", r.now().Sub(started)))
	if len(summary.Failed) > 0 {
		r.logger.Warn("dealers failed to recalculate", slog.String("dealers", FailedDealers(summary)))
	}

	r.storeOutcome(ctx, outcome)
	return summary, runErr
}

// token returns the in-memory token of an inline run, or takes the one stashed for a
// queued run. The stash is single use.
func (r *Recalculator) token(ctx context.Context, req RecalcRequest) (string, error) {
	if req.Token != "" {
		return req.Token, nil
	}
	token, err := r.redis.GetDel(ctx, recalcTokenKey).Result()
	if errors.Is(err, redis.Nil) || (err == nil && token == "") {
		return "", ErrRecalcCredential
	}
	if err != nil {
		return "", fmt.Errorf("ledger: load recalculation credential: %w", err)
	}
	return token, nil
}

func (r *Recalculator) storeOutcome(ctx context.Context, outcome RecalcOutcome) {
	data, err := json.Marshal(outcome)
	if err != nil {
		r.logger.Error("encode recalculation outcome", slog.Any("error", err))
		return
	}
	if err := r.redis.Set(context.WithoutCancel(ctx), recalcOutcomeKey, data, recalcOutcomeTTL).Err(); err != nil {
		r.logger.Error("store recalculation outcome", slog.Any("error", err))
	}
}

// Running reports whether a run is in flight.
func (r *Recalculator) Running(ctx context.Context) (bool, error) {
	n, err := r.redis.Exists(ctx, recalcRunningKey).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TakeOutcome returns and clears the stored outcome of the last finished run.
func (r *Recalculator) TakeOutcome(ctx context.Context) (*RecalcOutcome, error) {
	data, err := r.redis.GetDel(ctx, recalcOutcomeKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out RecalcOutcome
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecalcMessages turns an outcome into the flashes an admin sees: a success citing how many
// dealers out of the total were recalculated, and a separate warning for the failures.
func RecalcMessages(outcome RecalcOutcome) []shared.FlashMessage {
	if outcome.Error != "" && outcome.Summary.TotalDealers == 0 {
		return []shared.FlashMessage{shared.Failure("Recalculating all dealers failed: " + outcome.Error)}
	}
	s := outcome.Summary
	total := s.TotalDealers
	if total == 0 {
		total = len(s.Successful) + len(s.Failed)
	}
	out := []shared.FlashMessage{
		shared.Success(fmt.Sprintf("Recalculated balances for %d out of %d dealers", len(s.Successful), total)),
	}
	if n := len(s.Failed); n > 0 {
		noun := "dealers"
		if n == 1 {
			noun = "dealer"
		}
		out = append(out, shared.Warning(fmt.Sprintf("%d %s failed to recalculate: %s", n, noun, FailedDealers(s))))
	}
	return out
}

// FailedDealers lists the failed dealers for operator follow-up.
func FailedDealers(s RecalcSummary) string {
	names := make([]string, 0, len(s.Failed))
	for _, d := range s.Failed {
		name := d.DealerName
		if name == "" {
			name = fmt.Sprintf("#%d", d.DealerID)
		}
		if d.Error != "" {
			name += " (" + d.Error + ")"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

// Hook shows the running banner to admins and turns a finished run into flashes on the
// next admin page view.
func (r *Recalculator) Hook() view.Hook {
	return func(ctx context.Context, _ *shared.Session, data *view.TemplateData) {
		if !data.User.IsAdmin() {
			return
		}
		running, err := r.Running(ctx)
		if err != nil {
			r.logger.Warn("recalculation status", slog.Any("error", err))
			return
		}
		if running {
			data.Banner = RecalcBanner
			return
		}
		outcome, err := r.TakeOutcome(ctx)
		if err != nil {
			r.logger.Warn("recalculation outcome", slog.Any("error", err))
			return
		}
		if outcome != nil {
			data.Flashes = append(data.Flashes, RecalcMessages(*outcome)...)
		}
	}
}
