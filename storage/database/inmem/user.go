package inmemdb

import (
	"cmp"
	"context"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/user"
)

var userOrdering = comparators[user.User]{
	"name":       func(a, b user.User) int { return foldCmp(a.Name, b.Name) },
	"email":      func(a, b user.User) int { return cmp.Compare(a.Email, b.Email) },
	"role":       func(a, b user.User) int { return cmp.Compare(a.Role, b.Role) },
	"is_active":  func(a, b user.User) int { return boolCmp(a.IsActive, b.IsActive) },
	"created_at": func(a, b user.User) int { return timeCmp(a.CreatedAt, b.CreatedAt) },
	"last_login": func(a, b user.User) int { return timeCmp(a.LastLogin, b.LastLogin) },
}

type userRepository struct {
	db *table[user.User]
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db.users}
}

func (r *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedIDs ...string) error {
	_, taken := r.db.find(func(u user.User) bool {
		return u.Email == email && !core.Contains(excludedIDs, u.ID)
	})
	if taken {
		return user.ErrEmailExists
	}
	return nil
}

func (r *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.NewString()
	if !r.db.insertUnique(usr.ID, usr, func(u user.User) bool { return u.Email == usr.Email }) {
		return user.User{}, user.ErrEmailExists
	}
	return usr, nil
}

func (r *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	users := r.db.filter(func(u user.User) bool {
		if filter == nil {
			return true
		}
		if filter.Search != "" && !contains(u.Name, filter.Search) && !contains(u.Email, filter.Search) {
			return false
		}
		if len(filter.Roles) > 0 && !core.Contains(filter.Roles, u.Role) {
			return false
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			return false
		}
		if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom) {
			return false
		}
		if !filter.CreatedTo.IsZero() && u.CreatedAt.After(filter.CreatedTo) {
			return false
		}
		return true
	})
	sortRows(users, ordering, userOrdering, core.DBOrdering{Field: "created_at"})
	return users, nil
}

func (r *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	if usr, ok := r.db.get(id); ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (r *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	if usr, ok := r.db.find(func(u user.User) bool { return u.Email == email }); ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (r *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	found, unique := r.db.updateUnique(usr.ID, usr, func(u user.User) bool { return u.Email == usr.Email })
	if !found {
		return user.User{}, user.ErrNotFound
	}
	if !unique {
		return user.User{}, user.ErrEmailExists
	}
	return usr, nil
}

func (r *userRepository) DeleteUsersByID(_ context.Context, ids ...string) (int, error) {
	return r.db.removeWhere(func(u user.User) bool { return core.Contains(ids, u.ID) }), nil
}
