package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richardliu001/board-service/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned by point lookups that resolve nothing.
	ErrNotFound = errors.New("record not found")
	// ErrConditionFailed means a conditional write lost: the key already exists.
	ErrConditionFailed = errors.New("condition failed: key already exists")
)

// RepositoryInterface restricts Repo methods so services and processors can be tested against fakes.
type RepositoryInterface interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	CreateUser(ctx context.Context, u *model.User) error
	GetBoard(ctx context.Context, boardID string) (*model.Board, error)
	CreateBoard(ctx context.Context, b *model.Board) error
	ListBoards(ctx context.Context) ([]model.Board, error)
	CreateMessage(ctx context.Context, m *model.Message) error
	ListMessagesByBoard(ctx context.Context, boardID string, limit int) ([]model.Message, error)
	CountMessagesByBoard(ctx context.Context, boardID string) (int64, error)
	CreateOutboxEvent(ctx context.Context, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
}

// Repository implements RepositoryInterface on gorm.
type Repository struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, log: logger}
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.User{}, &model.Board{}, &model.Message{}, &model.OutboxEvent{})
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// GetUserByEmail is a primary key lookup.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetUserByID queries the user_id unique index.
func (r *Repository) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// CreateUser inserts only if no user holds the email yet.
func (r *Repository) CreateUser(ctx context.Context, u *model.User) error {
	return r.insertIfAbsent(ctx, u)
}

// GetBoard is a primary key lookup.
func (r *Repository) GetBoard(ctx context.Context, boardID string) (*model.Board, error) {
	var b model.Board
	if err := r.db.WithContext(ctx).Where("board_id = ?", boardID).First(&b).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// CreateBoard inserts only if the board id is unused.
func (r *Repository) CreateBoard(ctx context.Context, b *model.Board) error {
	return r.insertIfAbsent(ctx, b)
}

// ListBoards scans every board, newest first.
func (r *Repository) ListBoards(ctx context.Context) ([]model.Board, error) {
	var boards []model.Board
	err := r.db.WithContext(ctx).Order("created_at desc").Find(&boards).Error
	return boards, err
}

// CreateMessage inserts only if the message id is unused.
func (r *Repository) CreateMessage(ctx context.Context, m *model.Message) error {
	return r.insertIfAbsent(ctx, m)
}

// ListMessagesByBoard queries the board index, latest messages first.
func (r *Repository) ListMessagesByBoard(ctx context.Context, boardID string, limit int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("timestamp desc").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// CountMessagesByBoard counts messages stored for a board.
func (r *Repository) CountMessagesByBoard(ctx context.Context, boardID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).Where("board_id = ?", boardID).Count(&n).Error
	return n, err
}

// CreateOutboxEvent writes event.
func (r *Repository) CreateOutboxEvent(ctx context.Context, evt *model.OutboxEvent) error {
	return r.db.WithContext(ctx).Create(evt).Error
}

// PollOutbox pulls unprocessed events.
func (r *Repository) PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).Where("processed = ?", false).Order("id").Limit(limit).Find(&evts).Error
	return evts, err
}

// MarkOutboxProcessed sets processed flag.
func (r *Repository) MarkOutboxProcessed(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{"processed": true, "processed_at": &now}).Error
}

// insertIfAbsent is the conditional write: the row is created only when its
// primary key is free, and a lost race surfaces as ErrConditionFailed.
func (r *Repository) insertIfAbsent(ctx context.Context, row interface{}) error {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		return fmt.Errorf("insert %T: %w", row, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConditionFailed
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
