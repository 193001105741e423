// Package store 提供 memoria 的关系型存储访问。
//
// 读操作接受调用者的 owner，按项目所有者过滤；写操作（章节内容、诊断记录）
// 以提升权限执行，不做所有者过滤。
package store

import (
	"context"
	"time"

	"github.com/kart-io/memoria/internal/model"
)

// Unscoped 表示不按所有者过滤的读取（鉴权关闭时使用）。
const Unscoped = ""

// Factory defines the factory interface for creating stores.
type Factory interface {
	Projects() ProjectStore
	Sections() SectionStore
	Diagnostics() DiagnosticStore
	References() ReferenceStore
	AutoMigrate() error
	Close() error
}

// ProjectStore defines the project storage interface.
type ProjectStore interface {
	Create(ctx context.Context, project *model.Project) error
	// Get 返回 owner 可见的项目，不存在或不属于 owner 时返回 ErrProjectNotFound。
	Get(ctx context.Context, owner, id string) (*model.Project, error)
}

// SectionStore defines the section storage interface.
type SectionStore interface {
	Create(ctx context.Context, section *model.Section) error
	// List 按 sort_order 升序返回项目的全部章节。
	List(ctx context.Context, owner, projectID string) ([]*model.Section, error)
	// UpdateContent 写入新内容并标记完成（提升权限）。
	UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) error
}

// DiagnosticStore defines the diagnostic storage interface.
type DiagnosticStore interface {
	// Create 追加一条诊断记录（提升权限）。
	Create(ctx context.Context, diagnostic *model.Diagnostic) error
	// Latest 返回最新一条诊断，没有时返回 nil, nil。
	Latest(ctx context.Context, owner, projectID string) (*model.Diagnostic, error)
}

// ReferenceStore defines the reference file storage interface.
type ReferenceStore interface {
	Create(ctx context.Context, ref *model.ReferenceFile) error
	List(ctx context.Context, owner, projectID string) ([]*model.ReferenceFile, error)
}
