package http

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsDefaults(t *testing.T) {
	o := NewOptions()
	assert.Empty(t, o.Validate())
	assert.Zero(t, o.WriteTimeout)
}

func TestOptionsValidate(t *testing.T) {
	o := NewOptions()
	o.ApplyOptions(WithAddr(""), WithMode("prod"), WithWriteTimeout(-time.Second))
	assert.Len(t, o.Validate(), 3)
}

func TestOptionsFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs, "server")
	require.NoError(t, fs.Parse([]string{"--server.http.addr=:9000", "--server.http.write-timeout=1m"}))
	assert.Equal(t, ":9000", o.Addr)
	assert.Equal(t, time.Minute, o.WriteTimeout)
}
