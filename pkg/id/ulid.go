// Package id 生成时间可排序的唯一标识。
package id

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator 定义 ID 生成器接口。
type Generator interface {
	Generate() string
}

// ULIDGenerator 使用单调熵源生成 ULID，同一毫秒内也保持有序。
//
// 格式: 01AN4Z07BY79KA1307SR9X4MV3
//   - 前 10 字符: 时间戳 (毫秒)
//   - 后 16 字符: 随机熵
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewULIDGenerator 创建新的 ULID 生成器。
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Generate 实现 Generator 接口。
func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy).String()
}

var defaultGenerator = NewULIDGenerator()

// New 使用默认生成器返回一个新的 ULID。
func New() string {
	return defaultGenerator.Generate()
}

// Valid 判断 s 是否为合法的 ULID 字符串。
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
