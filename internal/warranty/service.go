// Package warranty serves warranty registrations: listing, editing the contact and
// product fields, verifying the customer's mobile by OTP and printing certificates.
package warranty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ttacon/libphonenumber"

	"github.com/facelessdevhack/plati-rail-admin/internal/listview"
	"github.com/facelessdevhack/plati-rail-admin/internal/models"
	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
	"github.com/facelessdevhack/plati-rail-admin/internal/store"
)

// DefaultRegion is the region mobile numbers are parsed in unless configured otherwise.
const DefaultRegion = "IN"

var (
	// ErrNotFound is returned for registrations outside the operator's reach.
	ErrNotFound = errors.New("warranty: registration not found")
	// ErrInvalidMobile is returned for numbers that are not valid in the configured region.
	ErrInvalidMobile = errors.New("warranty: invalid mobile number")
	// ErrCodeLength is returned for codes that are not exactly CodeLength characters.
	ErrCodeLength = errors.New("warranty: verification code must be 6 characters")
	// ErrWrongCode is returned when the backend rejects a code.
	ErrWrongCode = errors.New("warranty: verification code rejected")
	// ErrOTPNotSent is returned when verifying or resending without a pending code.
	ErrOTPNotSent = errors.New("warranty: no verification code pending")
	// ErrAlreadyVerified is returned when the mobile is already verified.
	ErrAlreadyVerified = errors.New("warranty: mobile already verified")
	// ErrResendTooSoon is returned within ResendCooldown of the last code.
	ErrResendTooSoon = errors.New("warranty: code sent too recently")
	// ErrNoCertificate is returned for registrations that are not active or verified.
	ErrNoCertificate = errors.New("warranty: certificate only for active registrations")
)

// NormaliseMobile parses raw in region and returns the national number.
func NormaliseMobile(raw, region string) (string, error) {
	if region == "" {
		region = DefaultRegion
	}
	num, err := libphonenumber.Parse(strings.TrimSpace(raw), region)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidMobile, err)
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", ErrInvalidMobile
	}
	return strconv.FormatUint(num.GetNationalNumber(), 10), nil
}

// Service runs the warranty workflow against the backend and the session store.
type Service struct {
	client *Client
	certs  *Certificates
	audit  shared.AuditRecorder
	logger *slog.Logger
	region string
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(client *Client, certs *Certificates, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, certs: certs, audit: audit, logger: logger, region: DefaultRegion, now: time.Now}
}

// WithRegion sets the region mobile numbers are parsed in.
func (s *Service) WithRegion(region string) *Service {
	if region != "" {
		s.region = strings.ToUpper(region)
	}
	return s
}

// ListController keeps the registration list of st in sync.
func (s *Service) ListController(st *store.Store) listview.Controller[RegistrationPage] {
	return listview.Controller[RegistrationPage]{
		Store:  st,
		Domain: store.DomainWarranty,
		Load:   s.client.List,
		Loaded: func(q store.Query, p RegistrationPage) store.Action {
			return store.WarrantyLoaded{Query: q, Items: p.Items, Total: p.Total}
		},
	}
}

// ListParams scopes the list query to the operator. Dealers only see their own dealer id.
func ListParams(actor shared.Principal, status, search string) map[string]string {
	params := map[string]string{"status": status, "search": search}
	if actor.Role == shared.RoleDealer {
		params["dealerId"] = strconv.FormatInt(actor.DealerID, 10)
	}
	return params
}

// Registration loads one registration the actor may see and patches it into st.
func (s *Service) Registration(ctx context.Context, st *store.Store, actor shared.Principal, id int64) (models.WarrantyRegistration, error) {
	reg, err := s.client.Get(ctx, id)
	if err != nil {
		return models.WarrantyRegistration{}, err
	}
	if actor.Role == shared.RoleDealer && reg.DealerID != actor.DealerID {
		return models.WarrantyRegistration{}, ErrNotFound
	}
	if st != nil {
		st.Dispatch(store.WarrantyUpdated{Registration: reg})
	}
	return reg, nil
}

// Update sends the editable fields of form. A changed mobile number resets the OTP
// verification of the registration.
func (s *Service) Update(ctx context.Context, st *store.Store, sess *shared.Session, actor shared.Principal, current models.WarrantyRegistration, form UpdateForm) (models.WarrantyRegistration, error) {
	mobile, err := NormaliseMobile(form.Mobile, s.region)
	if err != nil {
		return models.WarrantyRegistration{}, err
	}
	in := form.Update(mobile)
	mobileChanged := mobile != current.Mobile
	if mobileChanged {
		in.OTPStatus = models.OTPNotVerified
	}
	reg, err := s.client.Update(ctx, current.ID, in)
	if err != nil {
		return models.WarrantyRegistration{}, err
	}
	if mobileChanged {
		SaveFlow(sess, current.ID, OTPFlow{State: OTPNotVerified})
	}
	if reg.ID == 0 {
		reg = merge(current, in)
	}
	if st != nil {
		st.Dispatch(store.WarrantyUpdated{Registration: reg})
	}
	s.record(ctx, actor, shared.AuditWarrantyUpdated, current.ID, map[string]any{
		"status":         string(in.Status),
		"mobile_changed": mobileChanged,
	})
	return reg, nil
}

func merge(reg models.WarrantyRegistration, in RegistrationUpdate) models.WarrantyRegistration {
	reg.Mobile = in.Mobile
	reg.Email = in.Email
	if in.Status != "" {
		reg.Status = in.Status
	}
	if in.OTPStatus != "" {
		reg.OTPStatus = in.OTPStatus
	}
	reg.FinishID, reg.SizeID = idValue(in.FinishID), idValue(in.SizeID)
	reg.PCDID, reg.ModelID = idValue(in.PCDID), idValue(in.ModelID)
	return reg
}

// Flow returns the OTP flow of reg for this session.
func (s *Service) Flow(sess *shared.Session, reg models.WarrantyRegistration) OTPFlow {
	return LoadFlow(sess, reg.ID, reg.OTPStatus == models.OTPVerified)
}

// SendOTP sends the first code to the registration's mobile.
func (s *Service) SendOTP(ctx context.Context, sess *shared.Session, reg models.WarrantyRegistration) error {
	flow := s.Flow(sess, reg)
	switch {
	case flow.State == OTPVerified:
		return ErrAlreadyVerified
	case flow.State == OTPSent:
		return s.ResendOTP(ctx, sess, reg)
	}
	return s.send(ctx, sess, reg, flow)
}

// ResendOTP sends another code while one is pending.
func (s *Service) ResendOTP(ctx context.Context, sess *shared.Session, reg models.WarrantyRegistration) error {
	flow := s.Flow(sess, reg)
	switch {
	case flow.State == OTPVerified:
		return ErrAlreadyVerified
	case !flow.CanVerify():
		return ErrOTPNotSent
	case !flow.CanResend(s.now()):
		return ErrResendTooSoon
	}
	return s.send(ctx, sess, reg, flow)
}

func (s *Service) send(ctx context.Context, sess *shared.Session, reg models.WarrantyRegistration, flow OTPFlow) error {
	mobile, err := NormaliseMobile(reg.Mobile, s.region)
	if err != nil {
		return err
	}
	if err := s.client.SendOTP(ctx, mobile); err != nil {
		return err
	}
	SaveFlow(sess, reg.ID, flow.Sent(mobile, s.now()))
	return nil
}

// VerifyOTP checks code. Codes of the wrong length are refused without calling the
// backend; a rejected code leaves the flow waiting for another attempt.
func (s *Service) VerifyOTP(ctx context.Context, st *store.Store, sess *shared.Session, actor shared.Principal, reg models.WarrantyRegistration, code string) (models.WarrantyRegistration, error) {
	code = strings.TrimSpace(code)
	flow := s.Flow(sess, reg)
	switch {
	case flow.State == OTPVerified:
		return reg, ErrAlreadyVerified
	case !flow.CanVerify():
		return reg, ErrOTPNotSent
	case !ValidCode(code):
		return reg, ErrCodeLength
	}
	if err := s.client.VerifyOTP(ctx, flow.Mobile, code); err != nil {
		return reg, err
	}
	SaveFlow(sess, reg.ID, flow.Verified())
	updated, err := s.client.SetOTPStatus(ctx, reg.ID, models.OTPVerified)
	if err != nil {
		s.logger.Warn("mark registration verified", slog.Int64("registration_id", reg.ID), slog.Any("error", err))
		updated = reg
	}
	if updated.ID == 0 {
		updated = reg
	}
	updated.OTPStatus = models.OTPVerified
	if st != nil {
		st.Dispatch(store.WarrantyUpdated{Registration: updated})
	}
	s.record(ctx, actor, shared.AuditWarrantyVerified, reg.ID, nil)
	return updated, nil
}

// Certificate renders the PDF certificate of an active or verified registration.
func (s *Service) Certificate(ctx context.Context, reg models.WarrantyRegistration) (string, []byte, error) {
	if reg.Status != models.WarrantyActive && reg.Status != models.WarrantyVerified {
		return "", nil, ErrNoCertificate
	}
	pdf, err := s.certs.Render(ctx, reg, s.now())
	if err != nil {
		return "", nil, err
	}
	return CertificateFilename(reg), pdf, nil
}

func (s *Service) record(ctx context.Context, actor shared.Principal, action string, id int64, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "warranty_registration",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
