// Package production implements bulk creation of production plans: an operator picks
// source alloys and target finishes from the stock snapshot, and the selection is submitted
// plan by plan with independent success or failure per plan.
package production

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptySelection is returned when a submission holds no plans.
	ErrEmptySelection = errors.New("production: no plans selected")
	// ErrUnknownAlloy is returned when the source alloy is not in the stock snapshot.
	ErrUnknownAlloy = errors.New("production: source alloy not in stock")
	// ErrInvalidTarget is returned when the target finish is not a valid conversion.
	ErrInvalidTarget = errors.New("production: target finish not available for this alloy")
	// ErrDuplicatePlan is returned when the alloy/finish pair is already selected.
	ErrDuplicatePlan = errors.New("production: plan already selected")
	// ErrUnknownPlan is returned when a key names no selected plan.
	ErrUnknownPlan = errors.New("production: plan not in selection")
)

// Quantity bounds of one plan.
const (
	MinQuantity = 1
	MaxQuantity = 100000
)

// Selection is one planned conversion held in the planner before submission.
type Selection struct {
	AlloyID     int64  `json:"alloyId"`
	AlloyName   string `json:"alloyName"`
	ConvertID   int64  `json:"convertId"`
	ConvertName string `json:"convertName"`
	Quantity    int    `json:"quantity"`
	Urgent      bool   `json:"urgent"`
	InStock     int    `json:"inStock"`
}

// Key identifies a selection by its alloy/finish pair.
func (s Selection) Key() string {
	return fmt.Sprintf("%d-%d", s.AlloyID, s.ConvertID)
}

// Label is the human name of the conversion.
func (s Selection) Label() string {
	return strings.TrimSpace(s.AlloyName) + " → " + strings.TrimSpace(s.ConvertName)
}

// Selections is an ordered planner selection.
type Selections []Selection

// Find returns the selection with key.
func (s Selections) Find(key string) (Selection, bool) {
	for _, sel := range s {
		if sel.Key() == key {
			return sel, true
		}
	}
	return Selection{}, false
}

// Add appends sel unless its pair is already present.
func (s Selections) Add(sel Selection) (Selections, error) {
	if _, ok := s.Find(sel.Key()); ok {
		return s, ErrDuplicatePlan
	}
	out := make(Selections, len(s), len(s)+1)
	copy(out, s)
	return append(out, sel), nil
}

// Remove drops the selection with key.
func (s Selections) Remove(key string) Selections {
	out := make(Selections, 0, len(s))
	for _, sel := range s {
		if sel.Key() != key {
			out = append(out, sel)
		}
	}
	return out
}

// Update replaces quantity and urgency of the selection with key.
func (s Selections) Update(key string, quantity int, urgent bool) Selections {
	out := make(Selections, len(s))
	copy(out, s)
	for i := range out {
		if out[i].Key() == key {
			out[i].Quantity = quantity
			out[i].Urgent = urgent
		}
	}
	return out
}

// FinishesFor lists the target finish ids already selected for alloyID.
func (s Selections) FinishesFor(alloyID int64) map[int64]struct{} {
	out := make(map[int64]struct{})
	for _, sel := range s {
		if sel.AlloyID == alloyID {
			out[sel.ConvertID] = struct{}{}
		}
	}
	return out
}

// Without removes every selection whose key is in keys.
func (s Selections) Without(keys map[string]struct{}) Selections {
	out := make(Selections, 0, len(s))
	for _, sel := range s {
		if _, drop := keys[sel.Key()]; !drop {
			out = append(out, sel)
		}
	}
	return out
}
