package llm

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider 模拟供应商实现，用于测试。
type mockProvider struct {
	name string
}

func (m *mockProvider) Name() string  { return m.name }
func (m *mockProvider) Model() string { return "mock-1" }

func (m *mockProvider) Generate(_ context.Context, prompt string, _ GenerateOptions) (string, error) {
	return "echo: " + prompt, nil
}

func TestRegisterAndNewProvider(t *testing.T) {
	RegisterProvider("test-provider", func(config map[string]any) (TextProvider, error) {
		return &mockProvider{name: ConfigString(config, "name", "test-provider")}, nil
	})

	p, err := NewProvider("test-provider", map[string]any{"name": "custom-name"})
	require.NoError(t, err)
	assert.Equal(t, "custom-name", p.Name())
	assert.Contains(t, ListProviders(), "test-provider")

	out, err := p.Generate(context.Background(), "hola", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "echo: hola", out)
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider("unknown-provider", nil)
	assert.Error(t, err)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"api error", &APIError{StatusCode: 429, Message: "quota"}, 429},
		{"wrapped api error", fmt.Errorf("call: %w", &APIError{StatusCode: 401}), 401},
		{"other", ErrEmptyContent, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestConfigHelpers(t *testing.T) {
	cfg := map[string]any{"base_url": "http://x", "timeout": 3 * time.Second, "empty": ""}
	assert.Equal(t, "http://x", ConfigString(cfg, "base_url", "d"))
	assert.Equal(t, "d", ConfigString(cfg, "empty", "d"))
	assert.Equal(t, 3*time.Second, ConfigDuration(cfg, "timeout", time.Second))
	assert.Equal(t, time.Second, ConfigDuration(cfg, "missing", time.Second))
}
