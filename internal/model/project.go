// Package model defines the persisted data models for memoria.
package model

import (
	"time"
)

// Project is a grant application workspace owned by one user.
type Project struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(32)"`
	OwnerID     string    `json:"owner_id" gorm:"type:varchar(64);index;not null;comment:所有者"`
	Title       string    `json:"title" gorm:"type:varchar(255);not null"`
	ClientName  string    `json:"client_name" gorm:"type:varchar(255);comment:客户名称"`
	GrantName   string    `json:"grant_name" gorm:"type:varchar(255);comment:申请的资助计划"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Project.
func (Project) TableName() string {
	return "memoria_projects"
}

// Section is one titled, independently editable chunk of a project document.
type Section struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(32)"`
	ProjectID   string    `json:"project_id" gorm:"type:varchar(32);index:idx_section_project_order,priority:1;not null"`
	Title       string    `json:"title" gorm:"type:varchar(255);not null"`
	Content     string    `json:"content" gorm:"type:text"`
	IsCompleted bool      `json:"is_completed" gorm:"default:false"`
	SortOrder   int       `json:"sort_order" gorm:"index:idx_section_project_order,priority:2;default:0"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for Section.
func (Section) TableName() string {
	return "memoria_sections"
}

// ReferenceFile points to a stored reference document (call text, guidelines) of a project.
type ReferenceFile struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(32)"`
	ProjectID string    `json:"project_id" gorm:"type:varchar(32);index;not null"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	ObjectKey string    `json:"object_key" gorm:"type:varchar(512);not null"` // key in the object store
	MimeType  string    `json:"mime_type" gorm:"type:varchar(128)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for ReferenceFile.
func (ReferenceFile) TableName() string {
	return "memoria_reference_files"
}
