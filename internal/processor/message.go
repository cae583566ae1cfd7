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

// PostMessage appends the message and pushes it to the board's subscribers.
// A post whose board is not visible yet is dropped, not retried.
func (p *Processor) PostMessage(ctx context.Context, evt event.MessagePost) error {
	if _, err := p.store.GetBoard(ctx, evt.BoardID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return event.Permanent(fmt.Errorf("board %s not found", evt.BoardID))
		}
		return fmt.Errorf("lookup board %s: %w", evt.BoardID, err)
	}
	if _, err := p.store.GetUserByID(ctx, evt.UserID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return event.Permanent(fmt.Errorf("author %s not found", evt.UserID))
		}
		return fmt.Errorf("lookup author %s: %w", evt.UserID, err)
	}

	now := p.now().UTC()
	m := &model.Message{
		MessageID: derivedID(messageNamespace, evt.BoardID, evt.UserID, evt.Timestamp, evt.Content),
		BoardID:   evt.BoardID,
		UserID:    evt.UserID,
		UserName:  evt.UserName,
		Content:   evt.Content,
		Timestamp: now.UnixMilli(),
		CreatedAt: now,
	}
	if err := p.store.CreateMessage(ctx, m); err != nil {
		if errors.Is(err, repo.ErrConditionFailed) {
			p.log.Infow("message already stored by an earlier delivery", "message_id", m.MessageID, "board_id", m.BoardID)
			return nil
		}
		return fmt.Errorf("create message on %s: %w", evt.BoardID, err)
	}
	p.log.Infow("message created", "message_id", m.MessageID, "board_id", m.BoardID, "user_id", m.UserID)

	p.notifier.Broadcast(ctx, m.BoardID, push.NewMessage(m.BoardID, m, now))
	return nil
}
