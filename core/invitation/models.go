package invitation

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/user"
)

type Invitation struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Role       string     `json:"role"`
	StaffID    string     `json:"staff_id,omitempty"`
	ClientID   string     `json:"client_id,omitempty"`
	InvitedBy  string     `json:"invited_by,omitempty"`
	TokenHash  string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (inv Invitation) IsExpired(now time.Time) bool { return !now.Before(inv.ExpiresAt) }
func (inv Invitation) IsAccepted() bool             { return inv.AcceptedAt != nil }

// IsPending reports whether the invitation can still be accepted.
func (inv Invitation) IsPending(now time.Time) bool {
	return !inv.IsAccepted() && !inv.IsExpired(now)
}

// NewInvitation invites a person to set up an account.
// Client logins must name the client they belong to; staff and admin logins their staff record.
type NewInvitation struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,notblank"`
	Role     string `json:"role" validate:"required,userrole"`
	StaffID  string `json:"staff_id" validate:"omitempty,uuid"`
	ClientID string `json:"client_id" validate:"omitempty,uuid"`
}

func (ni *NewInvitation) Validate(validate *validator.Validate) error {
	ni.Email = core.CleanString(ni.Email, true /* lower */)
	ni.Name = core.CleanString(ni.Name)
	ni.Role = core.CleanString(ni.Role, true /* lower */)
	if err := validate.Struct(ni); err != nil {
		return err
	}
	switch {
	case ni.Role == user.RoleClient && ni.ClientID == "":
		return core.NewFieldError("client_id", ErrProfileRequired)
	case ni.Role != user.RoleClient && ni.StaffID == "":
		return core.NewFieldError("staff_id", ErrProfileRequired)
	case ni.Role == user.RoleClient:
		ni.StaffID = ""
	default:
		ni.ClientID = ""
	}
	return nil
}

// AcceptInvitation sets the password of the account an invitation creates.
type AcceptInvitation struct {
	Token           string `json:"token" validate:"required"`
	Name            string `json:"name"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

// NewUser builds the account for inv, keeping the invited email and role.
func (ai AcceptInvitation) NewUser(inv Invitation) user.NewUser {
	name := core.CleanString(ai.Name)
	if name == "" {
		name = inv.Name
	}
	return user.NewUser{
		Name:            name,
		Email:           inv.Email,
		Role:            inv.Role,
		Password:        ai.Password,
		PasswordConfirm: ai.PasswordConfirm,
	}
}

type QueryFilter struct {
	Email   string `query:"email"`
	Pending bool   `query:"pending"`
}

// newToken returns a random token and the hash stored in its place.
func newToken() (token, hash string, err error) {
	b := make([]byte, 32)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(b)
	return token, hashToken(token), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
