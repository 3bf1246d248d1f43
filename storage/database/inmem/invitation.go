package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/invitation"
)

type invitationRepository struct {
	db *table[invitation.Invitation]
}

var _ invitation.Repository = (*invitationRepository)(nil) // interface compliance check

func NewInvitationRepository(db *DB) *invitationRepository {
	return &invitationRepository{db: db.invitations}
}

func (r *invitationRepository) CreateInvitation(_ context.Context, inv invitation.Invitation) (invitation.Invitation, error) {
	inv.ID = uuid.NewString()
	r.db.insert(inv.ID, inv)
	return inv, nil
}

func (r *invitationRepository) QueryInvitations(_ context.Context, filter *invitation.QueryFilter) ([]invitation.Invitation, error) {
	invs := r.db.filter(func(inv invitation.Invitation) bool {
		if filter == nil {
			return true
		}
		if filter.Email != "" && inv.Email != filter.Email {
			return false
		}
		return !filter.Pending || !inv.IsAccepted()
	})
	sortRows(invs, nil, comparators[invitation.Invitation]{
		"created_at": func(a, b invitation.Invitation) int { return timeCmp(a.CreatedAt, b.CreatedAt) },
	}, core.DBOrdering{Field: "created_at"})
	return invs, nil
}

func (r *invitationRepository) GetInvitationByID(_ context.Context, id string) (invitation.Invitation, error) {
	if inv, ok := r.db.get(id); ok {
		return inv, nil
	}
	return invitation.Invitation{}, invitation.ErrNotFound
}

func (r *invitationRepository) GetInvitationByTokenHash(_ context.Context, hash string) (invitation.Invitation, error) {
	if inv, ok := r.db.find(func(inv invitation.Invitation) bool { return inv.TokenHash == hash }); ok {
		return inv, nil
	}
	return invitation.Invitation{}, invitation.ErrNotFound
}

func (r *invitationRepository) UpdateInvitation(_ context.Context, inv invitation.Invitation) (invitation.Invitation, error) {
	if !r.db.update(inv.ID, inv) {
		return invitation.Invitation{}, invitation.ErrNotFound
	}
	return inv, nil
}

func (r *invitationRepository) DeleteInvitation(_ context.Context, id string) error {
	if !r.db.remove(id) {
		return invitation.ErrNotFound
	}
	return nil
}
