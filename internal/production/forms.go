package production

import (
	"net/url"
	"strconv"
	"strings"
)

// SelectionForm adds one plan to the draft.
type SelectionForm struct {
	AlloyID   int64 `validate:"required,gt=0"`
	ConvertID int64 `validate:"required,gt=0"`
	Quantity  int   `validate:"required,min=1,max=100000"`
	Urgent    bool
}

// QuantityForm updates one selected plan.
type QuantityForm struct {
	Quantity int `validate:"required,min=1,max=100000"`
	Urgent   bool
}

// ParseSelectionForm reads alloy_id, convert_id, quantity and urgent.
func ParseSelectionForm(values url.Values) SelectionForm {
	return SelectionForm{
		AlloyID:   parseInt64(values.Get("alloy_id")),
		ConvertID: parseInt64(values.Get("convert_id")),
		Quantity:  parseQuantity(values.Get("quantity")),
		Urgent:    checked(values.Get("urgent")),
	}
}

// ParseQuantityForm reads quantity and urgent.
func ParseQuantityForm(values url.Values) QuantityForm {
	return QuantityForm{
		Quantity: parseQuantity(values.Get("quantity")),
		Urgent:   checked(values.Get("urgent")),
	}
}

func parseInt64(raw string) int64 {
	v, _ := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	return v
}

func parseQuantity(raw string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(raw))
	return v
}

func checked(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "on", "true", "yes":
		return true
	}
	return false
}
