package warranty

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
)

// OTPState is the verification flow of one registration within a session.
type OTPState string

// OTP flow states.
const (
	OTPNotVerified OTPState = "not_verified"
	OTPSent        OTPState = "otp_sent"
	OTPVerified    OTPState = "verified"
)

// CodeLength is the exact length of a verification code.
const CodeLength = 6

// ResendCooldown is the minimum gap between two codes sent to the same registration.
const ResendCooldown = 30 * time.Second

// OTPFlow is the session-held progress of one registration's verification.
type OTPFlow struct {
	State  OTPState  `json:"state"`
	Mobile string    `json:"mobile,omitempty"`
	SentAt time.Time `json:"sentAt,omitempty"`
}

// ValidCode reports whether code has exactly CodeLength characters.
func ValidCode(code string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(code)) == CodeLength
}

// CanSend reports whether a first code may be sent.
func (f OTPFlow) CanSend() bool {
	return f.State == OTPNotVerified || f.State == ""
}

// CanResend reports whether another code may be sent at now.
func (f OTPFlow) CanResend(now time.Time) bool {
	return f.State == OTPSent && now.Sub(f.SentAt) >= ResendCooldown
}

// CanVerify reports whether a code is awaited.
func (f OTPFlow) CanVerify() bool {
	return f.State == OTPSent
}

// Sent moves the flow into OTPSent.
func (f OTPFlow) Sent(mobile string, at time.Time) OTPFlow {
	return OTPFlow{State: OTPSent, Mobile: mobile, SentAt: at}
}

// Verified moves the flow into OTPVerified.
func (f OTPFlow) Verified() OTPFlow {
	return OTPFlow{State: OTPVerified, Mobile: f.Mobile}
}

func otpSessionKey(registrationID int64) string {
	return "warranty_otp:" + strconv.FormatInt(registrationID, 10)
}

// LoadFlow reads the flow of a registration from the session. A registration the backend
// already reports as verified is always in OTPVerified.
func LoadFlow(sess *shared.Session, registrationID int64, backendVerified bool) OTPFlow {
	if backendVerified {
		return OTPFlow{State: OTPVerified}
	}
	flow := OTPFlow{State: OTPNotVerified}
	if sess == nil {
		return flow
	}
	raw := sess.Get(otpSessionKey(registrationID))
	if raw == "" {
		return flow
	}
	if err := json.Unmarshal([]byte(raw), &flow); err != nil || flow.State == "" {
		return OTPFlow{State: OTPNotVerified}
	}
	return flow
}

// SaveFlow stores the flow on the session. A verified flow is dropped since the backend
// holds the verified state from then on.
func SaveFlow(sess *shared.Session, registrationID int64, flow OTPFlow) {
	if sess == nil {
		return
	}
	if flow.State == OTPVerified || flow.State == OTPNotVerified {
		sess.Delete(otpSessionKey(registrationID))
		return
	}
	data, err := json.Marshal(flow)
	if err != nil {
		return
	}
	sess.Set(otpSessionKey(registrationID), string(data))
}
