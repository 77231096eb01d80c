package repository

import (
	"context"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/docflow-api/internal/models"
)

// FormRepository persists structured forms and their approval flags.
type FormRepository interface {
	Create(ctx context.Context, form *models.Form) error
	GetByID(ctx context.Context, id uint) (models.Form, error)
	UpdateContent(ctx context.Context, id uint, title string, content datatypes.JSON) (models.Form, error)
	ToggleApproval(ctx context.Context, id uint, role models.ApproverRole) (models.Form, error)
	SetApproval(ctx context.Context, id uint, role models.ApproverRole, approved bool) (models.Form, error)
	UnapproveAllRoles(ctx context.Context, id uint) (models.Form, error)
	Delete(ctx context.Context, id uint) error
}

type formRepository struct {
	db *gorm.DB
}

// NewFormRepository constructs the form repository.
func NewFormRepository(db *gorm.DB) FormRepository {
	return &formRepository{db: db}
}

func (r *formRepository) Create(ctx context.Context, form *models.Form) error {
	return conn(ctx, r.db).Create(form).Error
}

func (r *formRepository) GetByID(ctx context.Context, id uint) (models.Form, error) {
	var form models.Form
	if err := conn(ctx, r.db).First(&form, id).Error; err != nil {
		return models.Form{}, err
	}
	return form, nil
}

func (r *formRepository) UpdateContent(ctx context.Context, id uint, title string, content datatypes.JSON) (models.Form, error) {
	updates := map[string]interface{}{"content": content}
	if title != "" {
		updates["title"] = title
	}
	return r.update(ctx, id, updates)
}

// ToggleApproval negates the role's flag in one statement so concurrent
// toggles are serialised by the database.
func (r *formRepository) ToggleApproval(ctx context.Context, id uint, role models.ApproverRole) (models.Form, error) {
	column, ok := models.FormApprovalColumn(role)
	if !ok {
		return models.Form{}, fmt.Errorf("role %q has no form approval column", role)
	}
	return r.update(ctx, id, map[string]interface{}{column: gorm.Expr("NOT " + column)})
}

func (r *formRepository) SetApproval(ctx context.Context, id uint, role models.ApproverRole, approved bool) (models.Form, error) {
	column, ok := models.FormApprovalColumn(role)
	if !ok {
		return models.Form{}, fmt.Errorf("role %q has no form approval column", role)
	}
	return r.update(ctx, id, map[string]interface{}{column: approved})
}

// UnapproveAllRoles clears both approval flags in a single statement.
func (r *formRepository) UnapproveAllRoles(ctx context.Context, id uint) (models.Form, error) {
	return r.update(ctx, id, map[string]interface{}{
		"client_approved": false,
		"admin_approved":  false,
	})
}

func (r *formRepository) Delete(ctx context.Context, id uint) error {
	result := conn(ctx, r.db).Delete(&models.Form{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *formRepository) update(ctx context.Context, id uint, updates map[string]interface{}) (models.Form, error) {
	result := conn(ctx, r.db).Model(&models.Form{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return models.Form{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Form{}, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}
