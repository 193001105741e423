// Package database 按配置的驱动打开 gorm 连接。
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	cgosqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	dbopts "github.com/kart-io/memoria/pkg/options/database"
)

// Open 打开数据库连接、配置连接池并做一次 Ping。
func Open(ctx context.Context, opts *dbopts.Options) (*gorm.DB, error) {
	if opts == nil {
		return nil, fmt.Errorf("database options cannot be nil")
	}

	dsn := BuildDSN(opts)
	var dialector gorm.Dialector
	switch opts.Driver {
	case dbopts.DriverMySQL:
		dialector = mysql.Open(dsn)
	case dbopts.DriverPostgres:
		dialector = postgres.Open(dsn)
	case dbopts.DriverSQLite:
		dialector = cgosqlite.Open(dsn)
	case dbopts.DriverSQLitePure:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(logLevel(opts.LogLevel), opts.SlowThreshold, true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// 内存 sqlite 每个连接是独立的库，只能保留一个连接
	if isMemoryDSN(dsn) {
		sqlDB.SetMaxOpenConns(1)
	} else {
		if opts.MaxIdleConnections > 0 {
			sqlDB.SetMaxIdleConns(opts.MaxIdleConnections)
		}
		if opts.MaxOpenConnections > 0 {
			sqlDB.SetMaxOpenConns(opts.MaxOpenConnections)
		}
		if opts.MaxConnectionLifeTime > 0 {
			sqlDB.SetConnMaxLifetime(opts.MaxConnectionLifeTime)
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping %s: %w", opts.Driver, err)
	}

	return db, nil
}

// OpenMemory 打开纯 Go 内存 sqlite，用于本地开发和测试。
func OpenMemory() (*gorm.DB, error) {
	opts := dbopts.NewOptions()
	opts.Driver = dbopts.DriverSQLitePure
	opts.DSN = ":memory:"
	return Open(context.Background(), opts)
}

func logLevel(level int) gormlogger.LogLevel {
	switch level {
	case 2:
		return gormlogger.Error
	case 3:
		return gormlogger.Warn
	case 4:
		return gormlogger.Info
	default:
		return gormlogger.Silent
	}
}
