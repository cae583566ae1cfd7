package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/richardliu001/board-service/internal/event"
	"github.com/richardliu001/board-service/internal/model"
	"github.com/richardliu001/board-service/internal/repo"
)

// RegisterUser creates the user unless the email is already taken. The
// existence check absorbs plain duplicates; the conditional insert settles two
// deliveries racing past the check.
func (p *Processor) RegisterUser(ctx context.Context, evt event.UserRegistration) error {
	email := strings.ToLower(strings.TrimSpace(evt.Email))

	_, err := p.store.GetUserByEmail(ctx, email)
	if err == nil {
		p.log.Infow("user already exists", "email", email)
		return nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("lookup user %s: %w", email, err)
	}

	now := p.now().UTC()
	u := &model.User{
		Email:     email,
		UserID:    uuid.NewString(),
		Name:      strings.TrimSpace(evt.Name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repo.ErrConditionFailed) {
			p.log.Infow("user registration lost race", "email", email)
			return nil
		}
		return fmt.Errorf("create user %s: %w", email, err)
	}

	p.log.Infow("user created", "user_id", u.UserID, "email", email)
	return nil
}
