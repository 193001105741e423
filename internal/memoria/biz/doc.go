// Package biz 实现文档诊断与自动修复的业务逻辑。
//
// 诊断阶段调用模型为项目文档打分并持久化诊断记录；修复流水线按分数从低到高
// 逐个章节重写、保存并通过事件流报告进度，最后重新诊断得到分数变化。
package biz
