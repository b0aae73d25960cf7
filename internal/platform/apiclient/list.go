package apiclient

import (
	"bytes"
	"encoding/json"
)

// List decodes the collection shapes the backend answers with: a bare JSON array, or an
// envelope carrying the rows under data, rows or result next to total/totalCount.
type List[T any] struct {
	Items []T
	Total int
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *List[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &l.Items); err != nil {
			return err
		}
		l.Total = len(l.Items)
		return nil
	}
	var env struct {
		Data       []T  `json:"data"`
		Rows       []T  `json:"rows"`
		Result     []T  `json:"result"`
		Total      *int `json:"total"`
		TotalCount *int `json:"totalCount"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return err
	}
	switch {
	case env.Data != nil:
		l.Items = env.Data
	case env.Rows != nil:
		l.Items = env.Rows
	default:
		l.Items = env.Result
	}
	switch {
	case env.Total != nil:
		l.Total = *env.Total
	case env.TotalCount != nil:
		l.Total = *env.TotalCount
	default:
		l.Total = len(l.Items)
	}
	return nil
}

// Ack is the generic acknowledgement body of mutating endpoints.
type Ack struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

// Failed reports whether the backend explicitly answered success=false.
func (a Ack) Failed() bool {
	return a.Success != nil && !*a.Success
}
