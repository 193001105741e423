// Package database 定义关系型数据库连接选项。
package database

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/memoria/pkg/options"
)

// 支持的驱动名称。
const (
	DriverMySQL      = "mysql"
	DriverPostgres   = "postgres"
	DriverSQLite     = "sqlite"      // gorm.io/driver/sqlite，需要 cgo
	DriverSQLitePure = "sqlite-pure" // github.com/glebarez/sqlite，纯 Go
)

// Options defines configuration options for the relational store.
type Options struct {
	Driver   string `json:"driver" mapstructure:"driver"`
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"sslmode" mapstructure:"sslmode"`
	// DSN 非空时直接使用，sqlite 驱动下为文件路径或 ":memory:"。
	DSN                   string        `json:"-" mapstructure:"dsn"`
	MaxIdleConnections    int           `json:"max-idle-connections" mapstructure:"max-idle-connections"`
	MaxOpenConnections    int           `json:"max-open-connections" mapstructure:"max-open-connections"`
	MaxConnectionLifeTime time.Duration `json:"max-connection-life-time" mapstructure:"max-connection-life-time"`
	LogLevel              int           `json:"log-level" mapstructure:"log-level"`
	SlowThreshold         time.Duration `json:"slow-threshold" mapstructure:"slow-threshold"`
	AutoMigrate           bool          `json:"auto-migrate" mapstructure:"auto-migrate"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Driver:                DriverMySQL,
		Host:                  "127.0.0.1",
		Port:                  3306,
		Username:              "root",
		SSLMode:               "disable",
		MaxIdleConnections:    10,
		MaxOpenConnections:    100,
		MaxConnectionLifeTime: 3600 * time.Second,
		LogLevel:              1, // Silent
		SlowThreshold:         200 * time.Millisecond,
	}
}

// Complete 从环境变量补全密码。
func (o *Options) Complete() error {
	if o.Password == "" {
		o.Password = os.Getenv("MEMORIA_DATABASE_PASSWORD")
	}
	return nil
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	var errs []error
	switch o.Driver {
	case DriverMySQL, DriverPostgres:
		if o.DSN == "" && o.Database == "" {
			errs = append(errs, fmt.Errorf("database.database is required for driver %q", o.Driver))
		}
	case DriverSQLite, DriverSQLitePure:
		if o.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for driver %q", o.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database.driver %q", o.Driver))
	}
	if o.LogLevel < 1 || o.LogLevel > 4 {
		errs = append(errs, fmt.Errorf("database.log-level must be in [1,4], got %d", o.LogLevel))
	}
	return errs
}

// AddFlags adds flags for database options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(prefixes, "database")...)
	fs.StringVar(&o.Driver, p+"driver", o.Driver, "Database driver: mysql, postgres, sqlite, sqlite-pure")
	fs.StringVar(&o.Host, p+"host", o.Host, "Database host")
	fs.IntVar(&o.Port, p+"port", o.Port, "Database port")
	fs.StringVar(&o.Username, p+"username", o.Username, "Database username")
	fs.StringVar(&o.Database, p+"database", o.Database, "Database name")
	fs.StringVar(&o.SSLMode, p+"sslmode", o.SSLMode, "PostgreSQL sslmode")
	fs.StringVar(&o.DSN, p+"dsn", o.DSN, "Full DSN, overrides host/port/database (sqlite: file path)")
	fs.IntVar(&o.MaxIdleConnections, p+"max-idle-connections", o.MaxIdleConnections, "Max idle connections")
	fs.IntVar(&o.MaxOpenConnections, p+"max-open-connections", o.MaxOpenConnections, "Max open connections")
	fs.DurationVar(&o.MaxConnectionLifeTime, p+"max-connection-life-time", o.MaxConnectionLifeTime, "Max connection life time")
	fs.IntVar(&o.LogLevel, p+"log-level", o.LogLevel, "GORM log level (1 silent, 2 error, 3 warn, 4 info)")
	fs.DurationVar(&o.SlowThreshold, p+"slow-threshold", o.SlowThreshold, "Slow query threshold")
	fs.BoolVar(&o.AutoMigrate, p+"auto-migrate", o.AutoMigrate, "Run schema migration on start")
}
