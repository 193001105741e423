package store

import (
	"gorm.io/gorm"

	"github.com/kart-io/memoria/internal/model"
)

// datastore implements the Factory interface.
type datastore struct {
	db *gorm.DB
}

// NewFactory 基于已打开的 gorm 连接创建存储工厂。
func NewFactory(db *gorm.DB) Factory {
	return &datastore{db: db}
}

// Projects returns the project store.
func (ds *datastore) Projects() ProjectStore {
	return newProjects(ds.db)
}

// Sections returns the section store.
func (ds *datastore) Sections() SectionStore {
	return newSections(ds.db)
}

// Diagnostics returns the diagnostic store.
func (ds *datastore) Diagnostics() DiagnosticStore {
	return newDiagnostics(ds.db)
}

// References returns the reference file store.
func (ds *datastore) References() ReferenceStore {
	return newReferences(ds.db)
}

// AutoMigrate migrates the database schema.
func (ds *datastore) AutoMigrate() error {
	return ds.db.AutoMigrate(
		&model.Project{},
		&model.Section{},
		&model.Diagnostic{},
		&model.ReferenceFile{},
	)
}

// Close closes the underlying connection pool.
func (ds *datastore) Close() error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ownedBy 追加项目所有者过滤条件，table 为持有 project_id 列的表名。
func ownedBy(db *gorm.DB, table, owner string) *gorm.DB {
	if owner == Unscoped {
		return db
	}
	return db.
		Joins("JOIN memoria_projects ON memoria_projects.id = "+table+".project_id").
		Where("memoria_projects.owner_id = ?", owner)
}
