package models

import "time"

// PlanStatus is owned by the backend; the dashboard only reads it.
type PlanStatus string

// Production plan statuses.
const (
	PlanNotStarted PlanStatus = "not_started"
	PlanInProgress PlanStatus = "in_progress"
	PlanCompleted  PlanStatus = "completed"
)

// QuantityTracking mirrors the backend's per-plan quantity counters.
type QuantityTracking struct {
	Allocated        int    `json:"allocated"`
	DispatchAccepted int    `json:"dispatchAccepted"`
	Pending          int    `json:"pending"`
	CompletionStatus string `json:"completionStatus"`
}

// ProductionPlan converts a quantity of one alloy into another finish.
type ProductionPlan struct {
	ID           int64            `json:"id"`
	AlloyID      int64            `json:"alloyId"`
	AlloyName    string           `json:"alloyName"`
	ConvertID    int64            `json:"convertId"`
	ConvertName  string           `json:"convertName"`
	Quantity     int              `json:"quantity"`
	Urgent       Flag             `json:"urgent"`
	Status       PlanStatus       `json:"status"`
	Tracking     QuantityTracking `json:"quantityTracking"`
	CreatedAt    time.Time        `json:"createdAt"`
	CreatedBy    string           `json:"createdBy"`
	ChildPlanIDs []int64          `json:"childPlanIds,omitempty"`
}

// StockRow is one alloy line of the stock snapshot.
type StockRow struct {
	ID           int64  `json:"id"`
	ProductName  string `json:"productName"`
	ModelID      int64  `json:"modelId"`
	ModelName    string `json:"modelName"`
	SizeID       int64  `json:"inchesId"`
	PCDID        int64  `json:"pcdId"`
	HolesID      int64  `json:"holesId"`
	WidthID      int64  `json:"widthId"`
	FinishID     int64  `json:"finishId"`
	FinishName   string `json:"finish"`
	InHouseStock int    `json:"inHouseStock"`
}

// SameShape reports whether two rows differ at most by finish.
func (r StockRow) SameShape(other StockRow) bool {
	return r.ModelID == other.ModelID &&
		r.SizeID == other.SizeID &&
		r.PCDID == other.PCDID &&
		r.HolesID == other.HolesID &&
		r.WidthID == other.WidthID
}
