package services

import (
	"context"
	"fmt"

	"github.com/dataagent-io/dataagent/ent"
	"github.com/dataagent-io/dataagent/ent/user"
)

// UserService manages user records and role checks
type UserService struct {
	client *ent.Client
}

// NewUserService creates a new UserService
func NewUserService(client *ent.Client) *UserService {
	return &UserService{client: client}
}

// EnsureUser creates the user record if it does not exist yet and returns it.
// Users are provisioned implicitly on first contact; callers supply the
// identity, not the role (new users always start as regular users).
func (s *UserService) EnsureUser(ctx context.Context, userID string) (*ent.User, error) {
	if userID == "" {
		return nil, NewValidationError("user_id", "required")
	}

	existing, err := s.client.User.Query().
		Where(user.IDEQ(userID)).
		Only(ctx)
	if err == nil {
		return existing, nil
	}
	if !ent.IsNotFound(err) {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	created, err := s.client.User.Create().
		SetID(userID).
		Save(ctx)
	if err != nil {
		// Lost a provisioning race; the row exists now.
		if ent.IsConstraintError(err) {
			return s.client.User.Query().Where(user.IDEQ(userID)).Only(ctx)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return created, nil
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, userID string) (*ent.User, error) {
	u, err := s.client.User.Query().
		Where(user.IDEQ(userID)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// SetRole updates a user's role
func (s *UserService) SetRole(ctx context.Context, userID string, role user.Role) (*ent.User, error) {
	u, err := s.client.User.UpdateOneID(userID).
		SetRole(role).
		Save(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update user role: %w", err)
	}
	return u, nil
}

// IsAdmin reports whether the user holds the admin role.
// Unknown users are never admins.
func (s *UserService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	u, err := s.client.User.Query().
		Where(user.IDEQ(userID)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to query user: %w", err)
	}
	return u.Role == user.RoleAdmin, nil
}
