package production

import (
	"context"
	"fmt"
	"strings"

	"github.com/facelessdevhack/plati-rail-admin/internal/platform/apiclient"
	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
)

// Outcome classifies a finished batch.
type Outcome int

// Batch outcomes.
const (
	AllSucceeded Outcome = iota
	PartiallySucceeded
	AllFailed
)

// FailedPlan is a plan the backend rejected, with its reason.
type FailedPlan struct {
	Selection Selection
	Reason    string
}

// BatchResult records each plan of a batch independently.
type BatchResult struct {
	Succeeded []Selection
	Failed    []FailedPlan
}

// Outcome reports how the batch went as a whole.
func (r BatchResult) Outcome() Outcome {
	switch {
	case len(r.Failed) == 0:
		return AllSucceeded
	case len(r.Succeeded) == 0:
		return AllFailed
	default:
		return PartiallySucceeded
	}
}

// Remaining is the selection left after the batch: failed plans stay for correction or
// retry, succeeded ones are removed.
func (r BatchResult) Remaining(sel Selections) Selections {
	done := make(map[string]struct{}, len(r.Succeeded))
	for _, s := range r.Succeeded {
		done[s.Key()] = struct{}{}
	}
	return sel.Without(done)
}

// Message is the flash summarising the batch, enumerating both groups and every failure
// reason.
func (r BatchResult) Message() shared.FlashMessage {
	switch r.Outcome() {
	case AllSucceeded:
		return shared.Success(fmt.Sprintf("Created %d production %s.", len(r.Succeeded), plans(len(r.Succeeded))))
	case AllFailed:
		return shared.Failure(fmt.Sprintf("All %d production %s failed: %s", len(r.Failed), plans(len(r.Failed)), r.failures()))
	}
	return shared.Warning(fmt.Sprintf("%d production %s created (%s); %d failed: %s",
		len(r.Succeeded), plans(len(r.Succeeded)), r.successes(), len(r.Failed), r.failures()))
}

func plans(n int) string {
	if n == 1 {
		return "plan"
	}
	return "plans"
}

func (r BatchResult) successes() string {
	labels := make([]string, 0, len(r.Succeeded))
	for _, s := range r.Succeeded {
		labels = append(labels, s.Label())
	}
	return strings.Join(labels, ", ")
}

func (r BatchResult) failures() string {
	labels := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		labels = append(labels, f.Selection.Label()+" ("+f.Reason+")")
	}
	return strings.Join(labels, "; ")
}

// PlanCreator creates one plan upstream.
type PlanCreator interface {
	CreatePlan(ctx context.Context, in PlanInput) error
}

// SubmitAll creates every selected plan one after another. A failed plan never stops the
// batch; a cancelled context marks the remaining plans as failed.
func SubmitAll(ctx context.Context, creator PlanCreator, sel Selections, userID int64) BatchResult {
	var res BatchResult
	for _, s := range sel {
		if err := ctx.Err(); err != nil {
			res.Failed = append(res.Failed, FailedPlan{Selection: s, Reason: "cancelled"})
			continue
		}
		err := creator.CreatePlan(ctx, PlanInput{
			AlloyID:   s.AlloyID,
			ConvertID: s.ConvertID,
			Quantity:  s.Quantity,
			Urgent:    s.Urgent,
			UserID:    userID,
		})
		if err != nil {
			res.Failed = append(res.Failed, FailedPlan{Selection: s, Reason: apiclient.Message(err, "request failed")})
			continue
		}
		res.Succeeded = append(res.Succeeded, s)
	}
	return res
}
