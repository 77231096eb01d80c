package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/docflow-api/internal/models"
)

// ActivityLogRepository persists the append-only audit trail.
type ActivityLogRepository interface {
	Append(ctx context.Context, entry *models.ActivityLog) error
	ListByClient(ctx context.Context, clientID uint) ([]models.ActivityLog, error)
	PaginateByClient(ctx context.Context, clientID uint, page, perPage int) ([]models.ActivityLog, int64, error)
	ChainByClient(ctx context.Context, clientID uint) ([]models.ActivityLog, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository constructs the activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

// Append links the entry to the client's chain and inserts it. Appends for one
// client are serialised with a transaction scoped advisory lock on Postgres.
func (r *activityLogRepository) Append(ctx context.Context, entry *models.ActivityLog) error {
	return NewTransactor(r.db).WithinTransaction(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.db)
		if db.Dialector != nil && db.Dialector.Name() == "postgres" {
			if err := db.Exec("SELECT pg_advisory_xact_lock(?)", int64(entry.ClientID)).Error; err != nil {
				return err
			}
		}

		var last models.ActivityLog
		err := db.Where("client_id = ?", entry.ClientID).Order("id DESC").Limit(1).Take(&last).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		entry.PrevHash = last.RecordHash
		entry.RecordHash = entry.ComputeHash()

		return db.Create(entry).Error
	})
}

func (r *activityLogRepository) ListByClient(ctx context.Context, clientID uint) ([]models.ActivityLog, error) {
	var entries []models.ActivityLog
	if err := r.newestFirst(ctx, clientID).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *activityLogRepository) PaginateByClient(ctx context.Context, clientID uint, page, perPage int) ([]models.ActivityLog, int64, error) {
	var total int64
	if err := conn(ctx, r.db).Model(&models.ActivityLog{}).Where("client_id = ?", clientID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	if int64(offset) >= total {
		return []models.ActivityLog{}, total, nil
	}

	var entries []models.ActivityLog
	if err := r.newestFirst(ctx, clientID).Offset(offset).Limit(perPage).Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *activityLogRepository) ChainByClient(ctx context.Context, clientID uint) ([]models.ActivityLog, error) {
	var entries []models.ActivityLog
	if err := conn(ctx, r.db).Where("client_id = ?", clientID).Order("id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *activityLogRepository) newestFirst(ctx context.Context, clientID uint) *gorm.DB {
	return conn(ctx, r.db).Model(&models.ActivityLog{}).
		Where("client_id = ?", clientID).
		Order("action_date DESC").
		Order("id DESC")
}
