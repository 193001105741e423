package store

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"

	"github.com/kart-io/memoria/internal/model"
	"github.com/kart-io/memoria/pkg/errors"
	"github.com/kart-io/memoria/pkg/id"
)

type projects struct {
	db *gorm.DB
}

func newProjects(db *gorm.DB) *projects {
	return &projects{db}
}

// Create creates a new project.
func (p *projects) Create(ctx context.Context, project *model.Project) error {
	if project.ID == "" {
		project.ID = id.New()
	}
	if err := p.db.WithContext(ctx).Create(project).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// Get retrieves a project visible to owner.
func (p *projects) Get(ctx context.Context, owner, projectID string) (*model.Project, error) {
	q := p.db.WithContext(ctx).Where("id = ?", projectID)
	if owner != Unscoped {
		q = q.Where("owner_id = ?", owner)
	}

	var project model.Project
	if err := q.First(&project).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrProjectNotFound
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &project, nil
}
