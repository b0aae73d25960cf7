package warranty

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/facelessdevhack/plati-rail-admin/internal/models"
)

// UpdateForm holds the editable fields of a registration. The customer name is display
// only and has no field here.
type UpdateForm struct {
	Mobile   string `validate:"required,min=10,max=16"`
	Email    string `validate:"omitempty,email,max=255"`
	Status   string `validate:"required,oneof=Draft Pending Active Verified Inactive"`
	FinishID int64  `validate:"omitempty,gt=0"`
	SizeID   int64  `validate:"omitempty,gt=0"`
	PCDID    int64  `validate:"omitempty,gt=0"`
	ModelID  int64  `validate:"omitempty,gt=0"`
}

// FormFor pre-fills the form from reg.
func FormFor(reg models.WarrantyRegistration) UpdateForm {
	return UpdateForm{
		Mobile:   reg.Mobile,
		Email:    reg.Email,
		Status:   string(reg.Status),
		FinishID: reg.FinishID,
		SizeID:   reg.SizeID,
		PCDID:    reg.PCDID,
		ModelID:  reg.ModelID,
	}
}

// ParseUpdateForm reads mobile, email, status, finish_id, size_id, pcd_id and model_id.
// A posted customer_name is ignored.
func ParseUpdateForm(values url.Values) UpdateForm {
	return UpdateForm{
		Mobile:   strings.TrimSpace(values.Get("mobile")),
		Email:    strings.TrimSpace(values.Get("email")),
		Status:   strings.TrimSpace(values.Get("status")),
		FinishID: parseID(values.Get("finish_id")),
		SizeID:   parseID(values.Get("size_id")),
		PCDID:    parseID(values.Get("pcd_id")),
		ModelID:  parseID(values.Get("model_id")),
	}
}

// Update builds the upstream payload with the normalised mobile.
func (f UpdateForm) Update(mobile string) RegistrationUpdate {
	return RegistrationUpdate{
		Mobile:   mobile,
		Email:    f.Email,
		Status:   models.WarrantyStatus(f.Status),
		FinishID: optionalID(f.FinishID),
		SizeID:   optionalID(f.SizeID),
		PCDID:    optionalID(f.PCDID),
		ModelID:  optionalID(f.ModelID),
	}
}

// optionalID maps an unset id to nil so it is sent as null.
func optionalID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

func idValue(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

func parseID(raw string) int64 {
	id, _ := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	return id
}
