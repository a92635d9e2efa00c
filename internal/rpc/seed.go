package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"dg-agenda/internal/auth"
	"dg-agenda/internal/model"
	"dg-agenda/internal/store"
)

// SeedUsers creates the accounts described by entries of the form
// "username:password:Role[:Display Name]" and adds each to its role.
// Existing usernames are left untouched. It returns the number created.
func SeedUsers(ctx context.Context, st store.Store, entries []string) (int, error) {
	created := 0
	for _, e := range entries {
		parts := strings.SplitN(strings.TrimSpace(e), ":", 4)
		if len(parts) < 3 || parts[0] == "" || parts[1] == "" {
			return created, fmt.Errorf("seed entry %q: want username:password:Role[:Display Name]", e)
		}
		role := model.Role(parts[2])
		if !role.Valid() {
			return created, fmt.Errorf("seed entry %q: unknown role %q", e, parts[2])
		}
		display := parts[0]
		if len(parts) == 4 && parts[3] != "" {
			display = parts[3]
		}

		hash, err := auth.HashPassword(parts[1])
		if err != nil {
			return created, err
		}
		u := &model.User{
			ID:           uuid.New().String(),
			Username:     parts[0],
			PasswordHash: hash,
			Role:         role,
			DisplayName:  display,
		}
		err = st.CreateUser(ctx, u)
		if errors.Is(err, store.ErrDuplicateUser) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", u.Username, err)
		}
		if err := st.AddRoleMember(ctx, role, u.ID); err != nil {
			return created, fmt.Errorf("seed %s: %w", u.Username, err)
		}
		created++
	}
	return created, nil
}
