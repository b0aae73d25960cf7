package models

import "time"

// WarrantyStatus is the lifecycle of a registration.
type WarrantyStatus string

// Registration statuses.
const (
	WarrantyDraft    WarrantyStatus = "Draft"
	WarrantyPending  WarrantyStatus = "Pending"
	WarrantyActive   WarrantyStatus = "Active"
	WarrantyVerified WarrantyStatus = "Verified"
	WarrantyInactive WarrantyStatus = "Inactive"
)

// WarrantyStatuses lists statuses in display order.
func WarrantyStatuses() []WarrantyStatus {
	return []WarrantyStatus{WarrantyDraft, WarrantyPending, WarrantyActive, WarrantyVerified, WarrantyInactive}
}

// OTPVerification records whether the customer's mobile was confirmed.
type OTPVerification string

// OTP verification states as stored by the backend.
const (
	OTPNotVerified OTPVerification = "NotVerified"
	OTPVerified    OTPVerification = "Verified"
)

// WarrantyRegistration is a customer's warranty record.
type WarrantyRegistration struct {
	ID               int64           `json:"id"`
	RegistrationCode string          `json:"registrationCode"`
	CustomerName     string          `json:"customerName"`
	Mobile           string          `json:"mobile"`
	Email            string          `json:"email"`
	DealerID         int64           `json:"dealerId"`
	DealerName       string          `json:"dealerName"`
	FinishID         int64           `json:"finishId"`
	SizeID           int64           `json:"sizeId"`
	PCDID            int64           `json:"pcdId"`
	ModelID          int64           `json:"modelId"`
	ProductName      string          `json:"productName"`
	OTPStatus        OTPVerification `json:"otpStatus"`
	Status           WarrantyStatus  `json:"status"`
	PurchaseDate     time.Time       `json:"purchaseDate"`
	CreatedAt        time.Time       `json:"createdAt"`
}
