package shared

import (
	"strconv"
	"strings"
)

// Role is the dashboard role enum carried in the session.
type Role string

// Dashboard roles.
const (
	RoleAdmin      Role = "admin"
	RoleDataEntry  Role = "data_entry"
	RoleSales      Role = "sales"
	RoleDealer     Role = "dealer"
	RoleProduction Role = "production"
)

// ParseRole maps upstream role names and numeric ids onto Role.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin", "1":
		return RoleAdmin, true
	case "data_entry", "dataentry", "entry", "2":
		return RoleDataEntry, true
	case "sales", "3":
		return RoleSales, true
	case "dealer", "4":
		return RoleDealer, true
	case "production", "5":
		return RoleProduction, true
	}
	return "", false
}

// Session keys populated at login.
const (
	SessionKeyToken    = "api_token"
	SessionKeyRole     = "role"
	SessionKeyUserName = "user_name"
	SessionKeyDealerID = "dealer_id"
)

// Principal describes the signed-in operator.
type Principal struct {
	UserID   int64
	Name     string
	Role     Role
	DealerID int64
	Token    string
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Authenticated reports whether a user is attached.
func (p Principal) Authenticated() bool {
	return p.UserID > 0 && p.Role != ""
}

// PrincipalFromSession reads the principal stored on sess.
func PrincipalFromSession(sess *Session) Principal {
	if sess == nil {
		return Principal{}
	}
	userID, _ := strconv.ParseInt(strings.TrimSpace(sess.User()), 10, 64)
	dealerID, _ := strconv.ParseInt(sess.Get(SessionKeyDealerID), 10, 64)
	role, _ := ParseRole(sess.Get(SessionKeyRole))
	return Principal{
		UserID:   userID,
		Name:     sess.Get(SessionKeyUserName),
		Role:     role,
		DealerID: dealerID,
		Token:    sess.Get(SessionKeyToken),
	}
}

// StorePrincipal writes p onto sess.
func StorePrincipal(sess *Session, p Principal) {
	if sess == nil {
		return
	}
	sess.SetUser(strconv.FormatInt(p.UserID, 10))
	sess.Set(SessionKeyRole, string(p.Role))
	sess.Set(SessionKeyUserName, p.Name)
	sess.Set(SessionKeyToken, p.Token)
	if p.DealerID > 0 {
		sess.Set(SessionKeyDealerID, strconv.FormatInt(p.DealerID, 10))
	}
}
