package store

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"

	"github.com/kart-io/memoria/internal/model"
	"github.com/kart-io/memoria/pkg/errors"
	"github.com/kart-io/memoria/pkg/id"
)

type diagnostics struct {
	db *gorm.DB
}

func newDiagnostics(db *gorm.DB) *diagnostics {
	return &diagnostics{db}
}

// Create appends a diagnostic record. Records are never updated.
func (d *diagnostics) Create(ctx context.Context, diagnostic *model.Diagnostic) error {
	if diagnostic.ID == "" {
		diagnostic.ID = id.New()
	}
	if err := d.db.WithContext(ctx).Create(diagnostic).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// Latest returns the newest diagnostic of a project by generated_at.
func (d *diagnostics) Latest(ctx context.Context, owner, projectID string) (*model.Diagnostic, error) {
	var diagnostic model.Diagnostic
	err := ownedBy(d.db.WithContext(ctx).Model(&model.Diagnostic{}), "memoria_diagnostics", owner).
		Select("memoria_diagnostics.*").
		Where("memoria_diagnostics.project_id = ?", projectID).
		Order("memoria_diagnostics.generated_at DESC").
		Order("memoria_diagnostics.id DESC").
		First(&diagnostic).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &diagnostic, nil
}
