package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/richardliu001/board-service/internal/event"
	"github.com/richardliu001/board-service/internal/model"
	"github.com/richardliu001/board-service/internal/push"
	"github.com/richardliu001/board-service/internal/repo"
)

// CreateBoard writes the board and announces it to every live connection.
func (p *Processor) CreateBoard(ctx context.Context, evt event.BoardCreation) error {
	if _, err := p.store.GetUserByID(ctx, evt.CreatedBy); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return event.Permanent(fmt.Errorf("creator %s not found", evt.CreatedBy))
		}
		return fmt.Errorf("lookup creator %s: %w", evt.CreatedBy, err)
	}

	now := p.now().UTC()
	b := &model.Board{
		BoardID:     derivedID(boardNamespace, evt.CreatedBy, evt.Name, evt.Timestamp),
		Name:        evt.Name,
		Description: evt.Description,
		CreatedBy:   evt.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.store.CreateBoard(ctx, b); err != nil {
		if errors.Is(err, repo.ErrConditionFailed) {
			p.log.Infow("board already created by an earlier delivery", "board_id", b.BoardID)
			return nil
		}
		return fmt.Errorf("create board %q: %w", evt.Name, err)
	}
	p.log.Infow("board created", "board_id", b.BoardID, "name", b.Name, "created_by", b.CreatedBy)

	p.notifier.Announce(ctx, push.NewBoard(b, now))
	return nil
}
