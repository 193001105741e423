package app

import (
	"github.com/spf13/pflag"
)

// CliOptions 是可由命令行、配置文件和环境变量填充的应用配置。
type CliOptions interface {
	// Flags 返回按分组命名的 flag 集合。
	Flags() NamedFlagSets
	// Complete 补全默认值和派生字段。
	Complete() error
	// Validate 校验全部配置，聚合返回错误。
	Validate() error
}

// NamedFlagSets 按名称保存 flag 分组并记住添加顺序。
type NamedFlagSets struct {
	Order    []string
	FlagSets map[string]*pflag.FlagSet
}

// FlagSet 返回名为 name 的分组，不存在时创建。
func (nfs *NamedFlagSets) FlagSet(name string) *pflag.FlagSet {
	if nfs.FlagSets == nil {
		nfs.FlagSets = map[string]*pflag.FlagSet{}
	}
	if _, ok := nfs.FlagSets[name]; !ok {
		nfs.FlagSets[name] = pflag.NewFlagSet(name, pflag.ExitOnError)
		nfs.Order = append(nfs.Order, name)
	}
	return nfs.FlagSets[name]
}
