package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/richardliu001/board-service/internal/event"
	"github.com/richardliu001/board-service/internal/model"
	"github.com/richardliu001/board-service/internal/repo"
	"go.uber.org/zap"
)

var (
	ErrInvalidEmail  = errors.New("invalid email format")
	ErrUserExists    = errors.New("user with this email already exists")
	ErrUserNotFound  = errors.New("user not found")
	ErrBoardNotFound = errors.New("board not found")
)

const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 100
)

// BoardService is the synchronous intake: it checks requests against current
// state and queues an event for asynchronous processing. Acceptance never
// means the mutation has been applied.
type BoardService struct {
	repo     repo.RepositoryInterface
	log      *zap.SugaredLogger
	now      func() time.Time
	validate *validator.Validate
}

// NewBoardService returns BoardService.
func NewBoardService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *BoardService {
	return &BoardService{repo: r, log: logger, now: time.Now, validate: validator.New()}
}

// RegisterUser queues a registration and returns the normalized email.
func (s *BoardService) RegisterUser(ctx context.Context, name, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", ErrInvalidEmail
	}
	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return "", ErrUserExists
	} else if !errors.Is(err, repo.ErrNotFound) {
		return "", err
	}

	evt := event.UserRegistration{
		Name:      strings.TrimSpace(name),
		Email:     email,
		Timestamp: event.FormatTime(s.now()),
	}
	if err := s.enqueue(ctx, event.KindUserRegistration, email, evt); err != nil {
		return "", err
	}
	return email, nil
}

// GetUserByEmail returns a registered user.
func (s *BoardService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}
	return userOrNotFound(s.repo.GetUserByEmail(ctx, email))
}

// CreateBoard queues a board creation for an existing user.
func (s *BoardService) CreateBoard(ctx context.Context, name, description, createdBy string) (string, error) {
	if _, err := userOrNotFound(s.repo.GetUserByID(ctx, createdBy)); err != nil {
		return "", err
	}
	evt := event.BoardCreation{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		CreatedBy:   createdBy,
		Timestamp:   event.FormatTime(s.now()),
	}
	if err := s.enqueue(ctx, event.KindBoardCreation, createdBy, evt); err != nil {
		return "", err
	}
	return evt.Name, nil
}

// ListBoards returns every board, newest first.
func (s *BoardService) ListBoards(ctx context.Context) ([]model.Board, error) {
	return s.repo.ListBoards(ctx)
}

// PostMessage queues a message for an existing board and author.
func (s *BoardService) PostMessage(ctx context.Context, boardID, content, userID, userName string) error {
	if _, err := s.Board(ctx, boardID); err != nil {
		return err
	}
	if _, err := userOrNotFound(s.repo.GetUserByID(ctx, userID)); err != nil {
		return err
	}
	evt := event.MessagePost{
		BoardID:   boardID,
		Content:   strings.TrimSpace(content),
		UserID:    userID,
		UserName:  strings.TrimSpace(userName),
		Timestamp: event.FormatTime(s.now()),
	}
	return s.enqueue(ctx, event.KindMessagePosting, userID, evt)
}

// GetMessages returns the latest messages of a board with the limit it applied.
func (s *BoardService) GetMessages(ctx context.Context, boardID string, limit int) (*model.Board, []model.Message, int, error) {
	b, err := s.Board(ctx, boardID)
	if err != nil {
		return nil, nil, 0, err
	}
	limit = ClampLimit(limit)
	msgs, err := s.repo.ListMessagesByBoard(ctx, boardID, limit)
	if err != nil {
		return nil, nil, 0, err
	}
	return b, msgs, limit, nil
}

// CheckSubscription verifies both sides of a websocket subscription exist.
func (s *BoardService) CheckSubscription(ctx context.Context, boardID, userID string) (*model.Board, error) {
	b, err := s.Board(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if _, err := userOrNotFound(s.repo.GetUserByID(ctx, userID)); err != nil {
		return nil, err
	}
	return b, nil
}

// Board looks up one board.
func (s *BoardService) Board(ctx context.Context, boardID string) (*model.Board, error) {
	b, err := s.repo.GetBoard(ctx, boardID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrBoardNotFound
	}
	return b, err
}

// ClampLimit keeps a page size within [1, MaxMessageLimit].
func ClampLimit(limit int) int {
	switch {
	case limit < 1:
		return 1
	case limit > MaxMessageLimit:
		return MaxMessageLimit
	}
	return limit
}

func userOrNotFound(u *model.User, err error) (*model.User, error) {
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func (s *BoardService) enqueue(ctx context.Context, kind event.Kind, key string, payload any) error {
	env, err := event.New(kind, key, payload, s.now())
	if err != nil {
		return err
	}
	row := &model.OutboxEvent{Kind: string(kind), PartitionKey: key, Payload: string(env.Payload)}
	if err := s.repo.CreateOutboxEvent(ctx, row); err != nil {
		return fmt.Errorf("queue %s: %w", kind, err)
	}
	s.log.Infow("event accepted", "kind", kind, "key", key, "outbox_id", row.ID)
	return nil
}
