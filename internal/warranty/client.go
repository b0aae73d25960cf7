package warranty

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/facelessdevhack/plati-rail-admin/internal/models"
	"github.com/facelessdevhack/plati-rail-admin/internal/platform/apiclient"
	"github.com/facelessdevhack/plati-rail-admin/internal/store"
)

const (
	pathRegistrations = "/warranty/registrations"
	pathSendOTP       = "/sms/send-otp"
	pathVerifyOTP     = "/otp/verify"
)

// RegistrationUpdate is the record sent when the edit form is saved. The customer name is
// not part of it: it stays as captured at registration. Email and the wheel ids are always
// sent so a cleared field reaches the backend as "" or null.
type RegistrationUpdate struct {
	Mobile    string                 `json:"mobile,omitempty"`
	Email     string                 `json:"email"`
	Status    models.WarrantyStatus  `json:"status,omitempty"`
	OTPStatus models.OTPVerification `json:"otpStatus,omitempty"`
	FinishID  *int64                 `json:"finishId"`
	SizeID    *int64                 `json:"sizeId"`
	PCDID     *int64                 `json:"pcdId"`
	ModelID   *int64                 `json:"modelId"`
}

type otpStatusUpdate struct {
	OTPStatus models.OTPVerification `json:"otpStatus"`
}

// RegistrationPage is one page of registrations.
type RegistrationPage struct {
	Items []models.WarrantyRegistration
	Total int
}

// Client speaks to the warranty and OTP endpoints of the backend.
type Client struct {
	api *apiclient.Client
}

// NewClient constructs a warranty Client.
func NewClient(api *apiclient.Client) *Client {
	return &Client{api: api}
}

// List loads one page of registrations. Query params: dealerId, status, search.
func (c *Client) List(ctx context.Context, q store.Query) (RegistrationPage, error) {
	values := url.Values{}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		values.Set("limit", strconv.Itoa(q.PageSize))
	}
	for _, key := range []string{"dealerId", "status", "search"} {
		if v := q.Params[key]; v != "" {
			values.Set(key, v)
		}
	}
	var out apiclient.List[models.WarrantyRegistration]
	if err := c.api.Get(ctx, pathRegistrations, values, &out); err != nil {
		return RegistrationPage{}, fmt.Errorf("warranty: list: %w", err)
	}
	return RegistrationPage{Items: out.Items, Total: out.Total}, nil
}

// Get loads one registration.
func (c *Client) Get(ctx context.Context, id int64) (models.WarrantyRegistration, error) {
	var out envelope
	if err := c.api.Get(ctx, registrationPath(id), nil, &out); err != nil {
		return models.WarrantyRegistration{}, fmt.Errorf("warranty: get %d: %w", id, err)
	}
	reg := out.registration()
	if reg.ID == 0 {
		reg.ID = id
	}
	return reg, nil
}

// Update patches a registration and returns the server's record.
func (c *Client) Update(ctx context.Context, id int64, in RegistrationUpdate) (models.WarrantyRegistration, error) {
	var out envelope
	if err := c.api.Put(ctx, registrationPath(id), in, &out); err != nil {
		return models.WarrantyRegistration{}, fmt.Errorf("warranty: update %d: %w", id, err)
	}
	return out.registration(), nil
}

// SetOTPStatus changes only the verification status of a registration.
func (c *Client) SetOTPStatus(ctx context.Context, id int64, status models.OTPVerification) (models.WarrantyRegistration, error) {
	var out envelope
	if err := c.api.Put(ctx, registrationPath(id), otpStatusUpdate{OTPStatus: status}, &out); err != nil {
		return models.WarrantyRegistration{}, fmt.Errorf("warranty: set otp status %d: %w", id, err)
	}
	return out.registration(), nil
}

// SendOTP asks the SMS service to send a verification code to mobile.
func (c *Client) SendOTP(ctx context.Context, mobile string) error {
	var ack apiclient.Ack
	if err := c.api.Post(ctx, pathSendOTP, map[string]string{"mobile": mobile}, &ack); err != nil {
		return fmt.Errorf("warranty: send otp: %w", err)
	}
	if ack.Failed() {
		return fmt.Errorf("warranty: send otp: %w", &apiclient.APIError{Path: pathSendOTP, Message: ack.Message})
	}
	return nil
}

// VerifyOTP checks code against the one sent to mobile.
func (c *Client) VerifyOTP(ctx context.Context, mobile, code string) error {
	var ack apiclient.Ack
	if err := c.api.Post(ctx, pathVerifyOTP, map[string]string{"mobile": mobile, "otp": code}, &ack); err != nil {
		return fmt.Errorf("warranty: verify otp: %w", err)
	}
	if ack.Failed() {
		return fmt.Errorf("%w: %s", ErrWrongCode, ack.Message)
	}
	return nil
}

func registrationPath(id int64) string {
	return pathRegistrations + "/" + strconv.FormatInt(id, 10)
}

// envelope accepts a bare record or one wrapped in data.
type envelope struct {
	models.WarrantyRegistration
	Data *models.WarrantyRegistration `json:"data"`
}

func (e envelope) registration() models.WarrantyRegistration {
	if e.Data != nil {
		return *e.Data
	}
	return e.WarrantyRegistration
}
