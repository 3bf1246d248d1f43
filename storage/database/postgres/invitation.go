package pgrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/atelierhq/atelier/core/invitation"
)

const invitationColumns = "id, email, name, role, staff_id, client_id, token_hash, invited_by, expires_at, accepted_at, created_at"

type invitationRow struct {
	ID         string      `db:"id"`
	Email      string      `db:"email"`
	Name       string      `db:"name"`
	Role       string      `db:"role"`
	StaffID    null.String `db:"staff_id"`
	ClientID   null.String `db:"client_id"`
	TokenHash  string      `db:"token_hash"`
	InvitedBy  null.String `db:"invited_by"`
	ExpiresAt  time.Time   `db:"expires_at"`
	AcceptedAt null.Time   `db:"accepted_at"`
	CreatedAt  time.Time   `db:"created_at"`
}

func toInvitationRow(inv invitation.Invitation) invitationRow {
	return invitationRow{
		ID:         inv.ID,
		Email:      inv.Email,
		Name:       inv.Name,
		Role:       inv.Role,
		StaffID:    null.NewString(inv.StaffID, inv.StaffID != ""),
		ClientID:   null.NewString(inv.ClientID, inv.ClientID != ""),
		TokenHash:  inv.TokenHash,
		InvitedBy:  null.NewString(inv.InvitedBy, inv.InvitedBy != ""),
		ExpiresAt:  inv.ExpiresAt.UTC(),
		AcceptedAt: null.TimeFromPtr(inv.AcceptedAt),
		CreatedAt:  inv.CreatedAt.UTC(),
	}
}

func (row invitationRow) invitation() invitation.Invitation {
	return invitation.Invitation{
		ID:         row.ID,
		Email:      row.Email,
		Name:       row.Name,
		Role:       row.Role,
		StaffID:    row.StaffID.String,
		ClientID:   row.ClientID.String,
		TokenHash:  row.TokenHash,
		InvitedBy:  row.InvitedBy.String,
		ExpiresAt:  row.ExpiresAt.UTC(),
		AcceptedAt: timePtr(row.AcceptedAt),
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

type invitationRepository struct {
	repo
}

var _ invitation.Repository = (*invitationRepository)(nil) // interface compliance check

func NewInvitationRepository(db *sqlx.DB) *invitationRepository {
	return &invitationRepository{repo{db: db}}
}

func (r *invitationRepository) CreateInvitation(ctx context.Context, inv invitation.Invitation) (invitation.Invitation, error) {
	inv.ID = uuid.NewString()
	_, err := r.namedExec(ctx, `
		INSERT INTO invitations (`+invitationColumns+`)
		VALUES (:id, :email, :name, :role, :staff_id, :client_id, :token_hash, :invited_by, :expires_at, :accepted_at,
		        :created_at)`,
		toInvitationRow(inv))
	if err != nil {
		return invitation.Invitation{}, errors.Wrap(err, "inserting invitation")
	}
	return inv, nil
}

func (r *invitationRepository) QueryInvitations(ctx context.Context, filter *invitation.QueryFilter) ([]invitation.Invitation, error) {
	w := &where{}
	if filter != nil {
		if filter.Email != "" {
			w.and("email = ?", filter.Email)
		}
		if filter.Pending {
			w.and("accepted_at IS NULL")
		}
	}

	var rows []invitationRow
	query := "SELECT " + invitationColumns + " FROM invitations" + w.String() + " ORDER BY created_at DESC"
	if err := r.selectAll(ctx, &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying invitations")
	}
	invs := make([]invitation.Invitation, 0, len(rows))
	for _, row := range rows {
		invs = append(invs, row.invitation())
	}
	return invs, nil
}

func (r *invitationRepository) GetInvitationByID(ctx context.Context, id string) (invitation.Invitation, error) {
	if !validID(id) {
		return invitation.Invitation{}, invitation.ErrNotFound
	}
	var row invitationRow
	if err := r.get(ctx, &row, "SELECT "+invitationColumns+" FROM invitations WHERE id = ?", id); err != nil {
		return invitation.Invitation{}, trapNoRowsErr(err, invitation.ErrNotFound, "finding invitation by ID")
	}
	return row.invitation(), nil
}

func (r *invitationRepository) GetInvitationByTokenHash(ctx context.Context, hash string) (invitation.Invitation, error) {
	var row invitationRow
	if err := r.get(ctx, &row, "SELECT "+invitationColumns+" FROM invitations WHERE token_hash = ?", hash); err != nil {
		return invitation.Invitation{}, trapNoRowsErr(err, invitation.ErrNotFound, "finding invitation by token")
	}
	return row.invitation(), nil
}

func (r *invitationRepository) UpdateInvitation(ctx context.Context, inv invitation.Invitation) (invitation.Invitation, error) {
	n, err := r.namedExec(ctx, `
		UPDATE invitations
		SET name = :name, token_hash = :token_hash, expires_at = :expires_at, accepted_at = :accepted_at
		WHERE id = :id`,
		toInvitationRow(inv))
	if err != nil {
		return invitation.Invitation{}, errors.Wrap(err, "updating invitation")
	}
	if n == 0 {
		return invitation.Invitation{}, invitation.ErrNotFound
	}
	return inv, nil
}

func (r *invitationRepository) DeleteInvitation(ctx context.Context, id string) error {
	if !validID(id) {
		return invitation.ErrNotFound
	}
	n, err := r.exec(ctx, "DELETE FROM invitations WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting invitation")
	}
	if n == 0 {
		return invitation.ErrNotFound
	}
	return nil
}
