package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/docflow-api/internal/models"
)

// DocumentFilter narrows directory listings.
type DocumentFilter struct {
	OwnerClientID *uint
	Path          string
	Page          int
	PageSize      int
}

// DocumentContent describes a new revision of a document's binary content.
type DocumentContent struct {
	ContentURL string
	MimeType   string
	Checksum   string
	SizeBytes  int64
}

// DocumentRepository persists controlled documents.
type DocumentRepository interface {
	Create(ctx context.Context, document *models.Document) error
	GetByID(ctx context.Context, id uint) (models.Document, error)
	UpdateContent(ctx context.Context, id uint, content DocumentContent) (models.Document, error)
	SetStatus(ctx context.Context, id uint, status models.DocumentStatus) (models.Document, error)
	ToggleStatus(ctx context.Context, id uint) (models.Document, error)
	Delete(ctx context.Context, id uint) error
	ListByPath(ctx context.Context, filter DocumentFilter) ([]models.Document, int64, error)
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository constructs the document repository.
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, document *models.Document) error {
	if document.Status == "" {
		document.Status = models.DocumentStatusNone
	}
	return conn(ctx, r.db).Create(document).Error
}

func (r *documentRepository) GetByID(ctx context.Context, id uint) (models.Document, error) {
	var document models.Document
	if err := conn(ctx, r.db).First(&document, id).Error; err != nil {
		return models.Document{}, err
	}
	return document, nil
}

func (r *documentRepository) UpdateContent(ctx context.Context, id uint, content DocumentContent) (models.Document, error) {
	return r.update(ctx, id, map[string]interface{}{
		"content_url": content.ContentURL,
		"mime_type":   content.MimeType,
		"checksum":    content.Checksum,
		"size_bytes":  content.SizeBytes,
		"revision":    gorm.Expr("revision + 1"),
	})
}

func (r *documentRepository) SetStatus(ctx context.Context, id uint, status models.DocumentStatus) (models.Document, error) {
	return r.update(ctx, id, map[string]interface{}{"status": status})
}

func (r *documentRepository) ToggleStatus(ctx context.Context, id uint) (models.Document, error) {
	flip := gorm.Expr("CASE WHEN status = ? THEN ? ELSE ? END",
		models.DocumentStatusApproved, models.DocumentStatusNone, models.DocumentStatusApproved)
	return r.update(ctx, id, map[string]interface{}{"status": flip})
}

func (r *documentRepository) Delete(ctx context.Context, id uint) error {
	result := conn(ctx, r.db).Delete(&models.Document{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *documentRepository) ListByPath(ctx context.Context, filter DocumentFilter) ([]models.Document, int64, error) {
	query := conn(ctx, r.db).Model(&models.Document{}).Where("path = ?", filter.Path)
	if filter.OwnerClientID != nil {
		query = query.Where("owner_client_id = ?", *filter.OwnerClientID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var documents []models.Document
	if err := query.Order("id ASC").Find(&documents).Error; err != nil {
		return nil, 0, err
	}

	return documents, total, nil
}

func (r *documentRepository) update(ctx context.Context, id uint, updates map[string]interface{}) (models.Document, error) {
	db := conn(ctx, r.db)
	result := db.Model(&models.Document{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return models.Document{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Document{}, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}
