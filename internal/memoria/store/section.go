package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kart-io/memoria/internal/model"
	"github.com/kart-io/memoria/pkg/errors"
	"github.com/kart-io/memoria/pkg/id"
)

type sections struct {
	db *gorm.DB
}

func newSections(db *gorm.DB) *sections {
	return &sections{db}
}

// Create creates a new section.
func (s *sections) Create(ctx context.Context, section *model.Section) error {
	if section.ID == "" {
		section.ID = id.New()
	}
	if section.UpdatedAt.IsZero() {
		section.UpdatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(section).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// List lists the sections of a project in document order.
func (s *sections) List(ctx context.Context, owner, projectID string) ([]*model.Section, error) {
	var list []*model.Section
	q := ownedBy(s.db.WithContext(ctx).Model(&model.Section{}), "memoria_sections", owner).
		Select("memoria_sections.*").
		Where("memoria_sections.project_id = ?", projectID).
		Order("memoria_sections.sort_order ASC").
		Order("memoria_sections.id ASC")
	if err := q.Find(&list).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return list, nil
}

// UpdateContent stores regenerated content and marks the section completed.
func (s *sections) UpdateContent(ctx context.Context, sectionID, content string, updatedAt time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&model.Section{}).
		Where("id = ?", sectionID).
		Updates(map[string]any{
			"content":      content,
			"is_completed": true,
			"updated_at":   updatedAt,
		})
	if res.Error != nil {
		return errors.ErrDatabase.WithCause(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.ErrSectionNotFound
	}
	return nil
}
