package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/kart-io/memoria/internal/model"
	"github.com/kart-io/memoria/pkg/errors"
	"github.com/kart-io/memoria/pkg/id"
)

type references struct {
	db *gorm.DB
}

func newReferences(db *gorm.DB) *references {
	return &references{db}
}

// Create registers a reference file.
func (r *references) Create(ctx context.Context, ref *model.ReferenceFile) error {
	if ref.ID == "" {
		ref.ID = id.New()
	}
	if err := r.db.WithContext(ctx).Create(ref).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// List lists the reference files of a project.
func (r *references) List(ctx context.Context, owner, projectID string) ([]*model.ReferenceFile, error) {
	var list []*model.ReferenceFile
	err := ownedBy(r.db.WithContext(ctx).Model(&model.ReferenceFile{}), "memoria_reference_files", owner).
		Select("memoria_reference_files.*").
		Where("memoria_reference_files.project_id = ?", projectID).
		Order("memoria_reference_files.created_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return list, nil
}
