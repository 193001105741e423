package biz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kart-io/logger"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/kart-io/memoria/internal/memoria/store"
	"github.com/kart-io/memoria/internal/pkg/textutil"
)

// ObjectStore 读取存储的参考文件。
type ObjectStore interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// LocalObjectStore 以本地目录作为对象存储，key 为相对路径。
type LocalObjectStore struct {
	root string
}

// NewLocalObjectStore 创建本地对象存储。
func NewLocalObjectStore(root string) *LocalObjectStore {
	return &LocalObjectStore{root: root}
}

// Get 实现 ObjectStore，key 不能逃出根目录。
func (s *LocalObjectStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	clean := path.Clean("/" + key)
	return os.Open(filepath.Join(s.root, filepath.FromSlash(clean)))
}

// TextExtractor 把参考文件转换为纯文本。
type TextExtractor interface {
	Supports(mimeType, name string) bool
	Extract(data []byte) (string, error)
}

// PlainTextExtractor 处理纯文本文件。
type PlainTextExtractor struct{}

// Supports 实现 TextExtractor。
func (PlainTextExtractor) Supports(mimeType, name string) bool {
	return strings.HasPrefix(mimeType, "text/plain") || strings.EqualFold(filepath.Ext(name), ".txt")
}

// Extract 实现 TextExtractor。
func (PlainTextExtractor) Extract(data []byte) (string, error) {
	return string(data), nil
}

// MarkdownExtractor 用 goldmark 解析 Markdown 并输出其中的文字。
type MarkdownExtractor struct {
	md goldmark.Markdown
}

// NewMarkdownExtractor 创建 Markdown 提取器。
func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{md: goldmark.New()}
}

// Supports 实现 TextExtractor。
func (e *MarkdownExtractor) Supports(mimeType, name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return mimeType == "text/markdown" || ext == ".md" || ext == ".markdown"
}

// Extract 实现 TextExtractor。
func (e *MarkdownExtractor) Extract(data []byte) (string, error) {
	doc := e.md.Parser().Parse(text.NewReader(data))

	var buf bytes.Buffer
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && buf.Len() > 0 && !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
				buf.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(data))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(data))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// ReferenceLoader 读取项目参考文件并拼接成摘录，任何失败都只记录日志。
type ReferenceLoader struct {
	store      store.Factory
	objects    ObjectStore
	extractors []TextExtractor
}

// NewReferenceLoader 创建参考材料加载器，未指定提取器时使用纯文本和 Markdown。
func NewReferenceLoader(factory store.Factory, objects ObjectStore, extractors ...TextExtractor) *ReferenceLoader {
	if len(extractors) == 0 {
		extractors = []TextExtractor{PlainTextExtractor{}, NewMarkdownExtractor()}
	}
	return &ReferenceLoader{store: factory, objects: objects, extractors: extractors}
}

// Excerpt 返回截断到 budget 个字符的参考材料摘录，没有可用材料时返回空字符串。
func (l *ReferenceLoader) Excerpt(ctx context.Context, owner, projectID string, budget int) string {
	refs, err := l.store.References().List(ctx, owner, projectID)
	if err != nil {
		logger.Warnw("failed to list reference files", "project_id", projectID, "error", err.Error())
		return ""
	}

	var parts []string
	for _, ref := range refs {
		txt, err := l.extract(ctx, ref.ObjectKey, ref.MimeType, ref.Name)
		if err != nil {
			logger.Warnw("skipping reference file",
				"project_id", projectID,
				"file", ref.Name,
				"error", err.Error(),
			)
			continue
		}
		if strings.TrimSpace(txt) != "" {
			parts = append(parts, fmt.Sprintf("--- %s ---\n%s", ref.Name, strings.TrimSpace(txt)))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return textutil.TruncateWithEllipsis(strings.Join(parts, "\n\n"), budget)
}

func (l *ReferenceLoader) extract(ctx context.Context, key, mimeType, name string) (string, error) {
	var ex TextExtractor
	for _, e := range l.extractors {
		if e.Supports(mimeType, name) {
			ex = e
			break
		}
	}
	if ex == nil {
		return "", fmt.Errorf("unsupported reference type %q", mimeType)
	}

	rc, err := l.objects.Get(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return ex.Extract(data)
}
