package auth

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
)

// loginRequest is the body of the upstream login call.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the upstream answer to a successful login.
type loginResponse struct {
	Token string    `json:"token"`
	User  loginUser `json:"user"`
}

type loginUser struct {
	ID       flexibleID      `json:"id"`
	Name     string          `json:"name"`
	Role     json.RawMessage `json:"role"`
	DealerID flexibleID      `json:"dealerId"`
}

// flexibleID accepts ids sent as numbers or numeric strings.
type flexibleID int64

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if raw == "null" || raw == `""` {
		*f = 0
		return nil
	}
	if len(raw) >= 2 && raw[0] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return err
	}
	*f = flexibleID(v)
	return nil
}

func (r loginResponse) principal() (shared.Principal, bool) {
	role, ok := shared.ParseRole(strings.Trim(string(r.User.Role), `"`))
	if !ok || r.Token == "" || r.User.ID <= 0 {
		return shared.Principal{}, false
	}
	return shared.Principal{
		UserID:   int64(r.User.ID),
		Name:     r.User.Name,
		Role:     role,
		DealerID: int64(r.User.DealerID),
		Token:    r.Token,
	}, true
}
