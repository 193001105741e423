package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	options "github.com/kart-io/memoria/pkg/options/redis"
)

func TestNewClientNilOptions(t *testing.T) {
	_, err := NewClient(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewClientUnreachable(t *testing.T) {
	opts := options.NewOptions()
	opts.Port = 1
	opts.MaxRetries = -1
	opts.DialTimeout = 100 * time.Millisecond

	_, err := NewClient(context.Background(), opts)
	assert.Error(t, err)
}

func TestOptionsValidate(t *testing.T) {
	opts := options.NewOptions()
	assert.Empty(t, opts.Validate(), "disabled redis is always valid")

	opts.Enabled = true
	opts.Port = 0
	assert.Len(t, opts.Validate(), 1)
}
