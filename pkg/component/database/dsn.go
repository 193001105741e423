package database

import (
	"fmt"
	"net/url"
	"strings"

	dbopts "github.com/kart-io/memoria/pkg/options/database"
)

// BuildDSN 按驱动生成连接串，opts.DSN 非空时原样返回。
func BuildDSN(opts *dbopts.Options) string {
	if opts.DSN != "" {
		return opts.DSN
	}
	switch opts.Driver {
	case dbopts.DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			opts.Host, opts.Port, opts.Username, escapePostgresValue(opts.Password), opts.Database, opts.SSLMode)
	default:
		// 密码中的 @ / : 等字符必须转义，否则破坏 DSN 解析
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			opts.Username, url.QueryEscape(opts.Password), opts.Host, opts.Port, opts.Database)
	}
}

func escapePostgresValue(v string) string {
	if v == "" {
		return "''"
	}
	if !strings.ContainsAny(v, " '\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}
