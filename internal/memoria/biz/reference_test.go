package biz

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/memoria/internal/model"
)

func TestMarkdownExtractor(t *testing.T) {
	src := "# Bases de la convocatoria\n\nLos proyectos deben alcanzar **TRL 6**.\n\n- Duración máxima: 24 meses\n- Presupuesto mínimo: 100.000 €\n\n```\ncodigo\n```\n"

	got, err := NewMarkdownExtractor().Extract([]byte(src))
	require.NoError(t, err)

	assert.Contains(t, got, "Bases de la convocatoria")
	assert.Contains(t, got, "Los proyectos deben alcanzar TRL 6.")
	assert.Contains(t, got, "Duración máxima: 24 meses")
	assert.Contains(t, got, "codigo")
	assert.NotContains(t, got, "#")
	assert.NotContains(t, got, "**")
}

func TestExtractorSupports(t *testing.T) {
	assert.True(t, PlainTextExtractor{}.Supports("text/plain; charset=utf-8", "bases"))
	assert.True(t, PlainTextExtractor{}.Supports("", "bases.TXT"))
	assert.True(t, NewMarkdownExtractor().Supports("", "bases.md"))
	assert.False(t, NewMarkdownExtractor().Supports("application/pdf", "bases.pdf"))
}

func TestLocalObjectStoreStaysInRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hola"), 0o600))

	s := NewLocalObjectStore(root)
	rc, err := s.Get(context.Background(), "../../a.txt")
	require.NoError(t, err, "escaping keys resolve inside the root")
	_ = rc.Close()
}

func TestReferenceLoaderExcerpt(t *testing.T) {
	fx := newFixture(t)
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, fx.project.ID), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, fx.project.ID, "bases.md"), []byte("# Bases\n\nRequisito: TRL 6."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, fx.project.ID, "notas.txt"), []byte(strings.Repeat("x", 500)), 0o600))

	ctx := context.Background()
	for _, ref := range []*model.ReferenceFile{
		{ProjectID: fx.project.ID, Name: "bases.md", ObjectKey: fx.project.ID + "/bases.md", MimeType: "text/markdown"},
		{ProjectID: fx.project.ID, Name: "convocatoria.pdf", ObjectKey: fx.project.ID + "/convocatoria.pdf", MimeType: "application/pdf"},
		{ProjectID: fx.project.ID, Name: "perdido.txt", ObjectKey: fx.project.ID + "/perdido.txt", MimeType: "text/plain"},
		{ProjectID: fx.project.ID, Name: "notas.txt", ObjectKey: fx.project.ID + "/notas.txt", MimeType: "text/plain"},
	} {
		require.NoError(t, fx.factory.References().Create(ctx, ref))
	}

	l := NewReferenceLoader(fx.factory, NewLocalObjectStore(root))

	got := l.Excerpt(ctx, "alice", fx.project.ID, 8000)
	assert.Contains(t, got, "--- bases.md ---\nBases\nRequisito: TRL 6.")
	assert.Contains(t, got, "--- notas.txt ---")
	assert.NotContains(t, got, "convocatoria.pdf")
	assert.NotContains(t, got, "perdido.txt")

	short := l.Excerpt(ctx, "alice", fx.project.ID, 40)
	assert.True(t, strings.HasSuffix(short, "\n[...]"))

	assert.Empty(t, l.Excerpt(ctx, "bob", fx.project.ID, 8000))
}
