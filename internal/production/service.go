package production

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/facelessdevhack/plati-rail-admin/internal/listview"
	"github.com/facelessdevhack/plati-rail-admin/internal/models"
	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
	"github.com/facelessdevhack/plati-rail-admin/internal/store"
)

// Service runs the planner against the backend, the draft store and the session store.
type Service struct {
	client *Client
	drafts *DraftStore
	audit  shared.AuditRecorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(client *Client, drafts *DraftStore, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, drafts: drafts, audit: audit, logger: logger, now: time.Now}
}

// Planner is everything the planner page renders.
type Planner struct {
	Stock     []models.StockRow
	Selection Selections
	Source    *models.StockRow
	Targets   []FinishOption
}

// PlansController keeps the plan list of st in sync.
func (s *Service) PlansController(st *store.Store) listview.Controller[PlanPage] {
	return listview.Controller[PlanPage]{
		Store:  st,
		Domain: store.DomainPlans,
		Load:   s.client.ListPlans,
		Loaded: func(q store.Query, p PlanPage) store.Action {
			return store.PlansLoaded{Query: q, Items: p.Items, Total: p.Total}
		},
	}
}

// LoadPlanner loads the stock snapshot and the operator's draft. When sourceID names a stock
// row its valid target finishes are resolved as well.
func (s *Service) LoadPlanner(ctx context.Context, actor shared.Principal, sourceID int64) (Planner, error) {
	stock, err := s.client.Stock(ctx)
	if err != nil {
		return Planner{}, err
	}
	sel, _, err := s.drafts.Load(ctx, actor.UserID)
	if err != nil {
		s.logger.Warn("load production draft", slog.Int64("user_id", actor.UserID), slog.Any("error", err))
	}
	p := Planner{Stock: stock, Selection: sel}
	if sourceID > 0 {
		if row, ok := FindStock(stock, sourceID); ok {
			p.Source = &row
			p.Targets = TargetFinishes(stock, row, sel)
		}
	}
	return p, nil
}

// Selection returns the operator's current draft selection.
func (s *Service) Selection(ctx context.Context, actor shared.Principal) (Selections, error) {
	sel, _, err := s.drafts.Load(ctx, actor.UserID)
	return sel, err
}

// AddPlan validates one alloy/finish pair against the stock snapshot and appends it to the
// draft.
func (s *Service) AddPlan(ctx context.Context, actor shared.Principal, form SelectionForm) (Selection, error) {
	stock, err := s.client.Stock(ctx)
	if err != nil {
		return Selection{}, err
	}
	source, ok := FindStock(stock, form.AlloyID)
	if !ok {
		return Selection{}, ErrUnknownAlloy
	}
	sel, _, err := s.drafts.Load(ctx, actor.UserID)
	if err != nil {
		return Selection{}, err
	}
	var target *FinishOption
	for _, opt := range TargetFinishes(stock, source, sel) {
		if opt.ConvertID == form.ConvertID {
			target = &opt
			break
		}
	}
	if target == nil {
		if _, dup := sel.Find(fmt.Sprintf("%d-%d", form.AlloyID, form.ConvertID)); dup {
			return Selection{}, ErrDuplicatePlan
		}
		return Selection{}, ErrInvalidTarget
	}
	plan := Selection{
		AlloyID:     source.ID,
		AlloyName:   source.ProductName,
		ConvertID:   target.ConvertID,
		ConvertName: target.Label,
		Quantity:    form.Quantity,
		Urgent:      form.Urgent,
		InStock:     source.InHouseStock,
	}
	next, err := sel.Add(plan)
	if err != nil {
		return Selection{}, err
	}
	return plan, s.drafts.Save(ctx, actor.UserID, next)
}

// UpdatePlan changes quantity and urgency of one selected plan.
func (s *Service) UpdatePlan(ctx context.Context, actor shared.Principal, key string, quantity int, urgent bool) error {
	sel, _, err := s.drafts.Load(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if _, ok := sel.Find(key); !ok {
		return ErrUnknownPlan
	}
	return s.drafts.Save(ctx, actor.UserID, sel.Update(key, quantity, urgent))
}

// RemovePlan drops one plan from the draft.
func (s *Service) RemovePlan(ctx context.Context, actor shared.Principal, key string) error {
	sel, _, err := s.drafts.Load(ctx, actor.UserID)
	if err != nil {
		return err
	}
	return s.drafts.Save(ctx, actor.UserID, sel.Remove(key))
}

// Discard clears the whole draft.
func (s *Service) Discard(ctx context.Context, actor shared.Principal) error {
	return s.drafts.Clear(ctx, actor.UserID)
}

// Submit creates every plan of the draft one by one. Succeeded plans leave the draft and
// failed plans stay selected; the plan list is re-fetched when anything was created.
func (s *Service) Submit(ctx context.Context, st *store.Store, actor shared.Principal) (BatchResult, error) {
	sel, _, err := s.drafts.Load(ctx, actor.UserID)
	if err != nil {
		return BatchResult{}, err
	}
	if len(sel) == 0 {
		return BatchResult{}, ErrEmptySelection
	}
	res := SubmitAll(ctx, s.client, sel, actor.UserID)
	if err := s.drafts.Save(context.WithoutCancel(ctx), actor.UserID, res.Remaining(sel)); err != nil {
		s.logger.Error("save production draft after submit", slog.Int64("user_id", actor.UserID), slog.Any("error", err))
	}
	for _, f := range res.Failed {
		s.logger.Warn("production plan rejected",
			slog.Int64("alloy_id", f.Selection.AlloyID),
			slog.Int64("convert_id", f.Selection.ConvertID),
			slog.String("reason", f.Reason))
	}
	if len(res.Succeeded) > 0 && st != nil {
		st.Invalidate(store.DomainPlans)
	}
	s.record(ctx, actor, map[string]any{
		"requested": len(sel),
		"succeeded": len(res.Succeeded),
		"failed":    len(res.Failed),
	})
	return res, nil
}

func (s *Service) record(ctx context.Context, actor shared.Principal, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   shared.AuditPlansSubmitted,
		Entity:   "production_plan",
		EntityID: strconv.FormatInt(actor.UserID, 10),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn("audit record", slog.String("action", shared.AuditPlansSubmitted), slog.Any("error", err))
	}
}
