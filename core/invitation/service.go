package invitation

import (
	"context"
	"net/mail"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/client"
	"github.com/atelierhq/atelier/core/staff"
	"github.com/atelierhq/atelier/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("invitation not found")
	ErrInvalidToken    = errors.New("the invitation link is invalid")
	ErrExpired         = errors.New("the invitation has expired")
	ErrAccepted        = errors.New("the invitation has already been accepted")
	ErrAlreadyInvited  = errors.New("a pending invitation exists for this email")
	ErrRoleTooHigh     = errors.New("cannot invite with a role above your own")
	ErrProfileRequired = errors.New("this field is required for the role")
	ErrProfileLinked   = errors.New("this profile already has a login")
)

type (
	Repository interface {
		CreateInvitation(ctx context.Context, inv Invitation) (Invitation, error)
		// QueryInvitations returns invitations newest first. QueryFilter.Pending keeps the unaccepted ones.
		QueryInvitations(ctx context.Context, filter *QueryFilter) ([]Invitation, error)
		GetInvitationByID(ctx context.Context, id string) (Invitation, error)
		GetInvitationByTokenHash(ctx context.Context, hash string) (Invitation, error)
		UpdateInvitation(ctx context.Context, inv Invitation) (Invitation, error)
		DeleteInvitation(ctx context.Context, id string) error
	}

	Users interface {
		Create(ctx context.Context, nu user.NewUser) (user.User, error)
		GetByEmail(ctx context.Context, email string) (user.User, error)
	}

	// ProfileLinker attaches a login to a staff or client record.
	ProfileLinker interface {
		LinkUser(ctx context.Context, id, userID string) error
		LinkedUserID(ctx context.Context, id string) (string, error)
	}

	Service struct {
		repo    Repository
		users   Users
		staff   ProfileLinker
		clients ProfileLinker
		tx      core.Transactor
		mailSvc core.EmailService
		conf    *core.Config
		now     func() time.Time
	}
)

func NewService(repo Repository, users Users, staff, clients ProfileLinker, tx core.Transactor, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		staff:   staff,
		clients: clients,
		tx:      tx,
		mailSvc: mailSvc,
		conf:    conf,
		now:     time.Now,
	}
}

// Invite records an invitation and emails its link to the invitee.
func (svc *Service) Invite(ctx context.Context, inviter user.User, ni NewInvitation) (Invitation, error) {
	if user.RolePriority(ni.Role) > user.RolePriority(inviter.Role) {
		return Invitation{}, core.NewFieldError("role", ErrRoleTooHigh)
	}
	if _, err := svc.users.GetByEmail(ctx, ni.Email); err == nil {
		return Invitation{}, core.NewFieldError("email", user.ErrEmailExists)
	} else if errors.Cause(err) != user.ErrNotFound {
		return Invitation{}, errors.Wrap(err, "finding user by email")
	}
	if err := svc.checkProfile(ctx, ni.StaffID, ni.ClientID); err != nil {
		return Invitation{}, err
	}

	pending, err := svc.Query(ctx, &QueryFilter{Email: ni.Email, Pending: true})
	if err != nil {
		return Invitation{}, err
	}
	if len(pending) > 0 {
		return Invitation{}, core.NewFieldError("email", ErrAlreadyInvited)
	}

	token, hash, err := newToken()
	if err != nil {
		return Invitation{}, errors.Wrap(err, "generating token")
	}
	now := svc.now().UTC()
	inv, err := svc.repo.CreateInvitation(ctx, Invitation{
		Email:     ni.Email,
		Name:      ni.Name,
		Role:      ni.Role,
		StaffID:   ni.StaffID,
		ClientID:  ni.ClientID,
		InvitedBy: inviter.ID,
		TokenHash: hash,
		ExpiresAt: now.Add(svc.conf.InvitationTimeoutDelta),
		CreatedAt: now,
	})
	if err != nil {
		return Invitation{}, errors.Wrap(err, "creating invitation")
	}
	svc.send(inv, token, inviter.Name)
	return inv, nil
}

func (svc *Service) checkProfile(ctx context.Context, staffID, clientID string) error {
	var (
		field    string
		linker   ProfileLinker
		id       string
		notFound error
	)
	switch {
	case clientID != "":
		field, linker, id, notFound = "client_id", svc.clients, clientID, client.ErrNotFound
	case staffID != "":
		field, linker, id, notFound = "staff_id", svc.staff, staffID, staff.ErrNotFound
	default:
		return nil
	}
	linked, err := linker.LinkedUserID(ctx, id)
	if err != nil {
		if errors.Cause(err) == notFound {
			return core.NewFieldError(field, err)
		}
		return errors.Wrap(err, "finding profile")
	}
	if linked != "" {
		return core.NewFieldError(field, ErrProfileLinked)
	}
	return nil
}

func (svc *Service) send(inv Invitation, token, invitedBy string) {
	path := "/setup-password"
	if inv.Role == user.RoleClient {
		path = "/client/setup-password"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: inv.Name, Address: inv.Email}},
		Subject:      "You have been invited to " + svc.conf.AppName,
		TemplateName: "invitation",
		TemplateData: map[string]interface{}{
			"Name":      inv.Name,
			"InvitedBy": invitedBy,
			"Link":      svc.conf.FrontendBaseURL + path + "?token=" + url.QueryEscape(token),
			"ExpiresAt": inv.ExpiresAt,
		},
	})
}

// IsTokenError reports whether err means the token cannot be used.
func IsTokenError(err error) bool {
	switch errors.Cause(err) {
	case ErrInvalidToken, ErrExpired, ErrAccepted:
		return true
	}
	return false
}

// Validate looks up the invitation a token was issued for.
func (svc *Service) Validate(ctx context.Context, token string) (Invitation, error) {
	if token == "" {
		return Invitation{}, ErrInvalidToken
	}
	inv, err := svc.repo.GetInvitationByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Invitation{}, ErrInvalidToken
		}
		return Invitation{}, errors.Wrap(err, "finding invitation")
	}
	if inv.IsAccepted() {
		return Invitation{}, ErrAccepted
	}
	if inv.IsExpired(svc.now()) {
		return Invitation{}, ErrExpired
	}
	return inv, nil
}

// Accept creates the invited account and links its profile, in one transaction.
func (svc *Service) Accept(ctx context.Context, token string, nu user.NewUser) (user.User, error) {
	var usr user.User
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := svc.Validate(ctx, token)
		if err != nil {
			if IsTokenError(err) {
				return core.NewFieldError("token", err)
			}
			return err
		}
		nu.Email, nu.Role = inv.Email, inv.Role
		if nu.Name == "" {
			nu.Name = inv.Name
		}

		if usr, err = svc.users.Create(ctx, nu); err != nil {
			return errors.Wrap(err, "creating user")
		}
		switch {
		case inv.ClientID != "":
			err = svc.clients.LinkUser(ctx, inv.ClientID, usr.ID)
		case inv.StaffID != "":
			err = svc.staff.LinkUser(ctx, inv.StaffID, usr.ID)
		}
		if err != nil {
			return errors.Wrap(err, "linking profile")
		}

		accepted := svc.now().UTC()
		inv.AcceptedAt = &accepted
		_, err = svc.repo.UpdateInvitation(ctx, inv)
		return errors.Wrap(err, "updating invitation")
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

// Resend issues a new token with a fresh expiry. The previous link stops working.
func (svc *Service) Resend(ctx context.Context, inv Invitation, invitedBy string) (Invitation, error) {
	if inv.IsAccepted() {
		return Invitation{}, core.NewFieldError("token", ErrAccepted)
	}
	token, hash, err := newToken()
	if err != nil {
		return Invitation{}, errors.Wrap(err, "generating token")
	}
	inv.TokenHash = hash
	inv.ExpiresAt = svc.now().UTC().Add(svc.conf.InvitationTimeoutDelta)
	inv, err = svc.repo.UpdateInvitation(ctx, inv)
	if err != nil {
		return Invitation{}, errors.Wrap(err, "updating invitation")
	}
	svc.send(inv, token, invitedBy)
	return inv, nil
}

func (svc *Service) Revoke(ctx context.Context, id string) error {
	return svc.repo.DeleteInvitation(ctx, id)
}

func (svc *Service) Get(ctx context.Context, id string) (Invitation, error) {
	return svc.repo.GetInvitationByID(ctx, id)
}

// Query lists invitations. Pending ones exclude expired invitations.
func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Invitation, error) {
	if filter != nil {
		filter.Email = core.CleanString(filter.Email, true /* lower */)
	}
	invs, err := svc.repo.QueryInvitations(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying invitations")
	}
	if filter == nil || !filter.Pending {
		return invs, nil
	}
	now := svc.now()
	pending := invs[:0]
	for _, inv := range invs {
		if inv.IsPending(now) {
			pending = append(pending, inv)
		}
	}
	return pending, nil
}
