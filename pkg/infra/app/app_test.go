package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServerOptions struct {
	Addr    string        `mapstructure:"addr"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type testOptions struct {
	Server *testServerOptions `mapstructure:"server"`
	Name   string             `mapstructure:"name"`

	completed bool
}

func (o *testOptions) Flags() (fss NamedFlagSets) {
	fs := fss.FlagSet("server")
	fs.StringVar(&o.Server.Addr, "server.addr", o.Server.Addr, "")
	fs.DurationVar(&o.Server.Timeout, "server.timeout", o.Server.Timeout, "")
	fss.FlagSet("misc").StringVar(&o.Name, "name", o.Name, "")
	return fss
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error {
	if o.Server.Addr == "" {
		return errors.New("addr required")
	}
	return nil
}

func newTestOptions() *testOptions {
	return &testOptions{Server: &testServerOptions{Addr: ":1", Timeout: time.Second}, Name: "default"}
}

func TestNamedFlagSetsOrder(t *testing.T) {
	var fss NamedFlagSets
	fss.FlagSet("b")
	fss.FlagSet("a")
	fss.FlagSet("b")
	assert.Equal(t, []string{"b", "a"}, fss.Order)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "MEMORIA_CTL", EnvPrefix("memoria-ctl"))
	assert.Equal(t, "MEMORIA_LLM_API_KEY", EnvKey("MEMORIA", "llm.api-key"))
}

func TestConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("server:\n  addr: \":2\"\n  timeout: 5s\nname: ${TEST_APP_NAME}\n"), 0o600))
	t.Setenv("TEST_APP_NAME", "from-file-env")
	t.Setenv("TESTAPP_SERVER_TIMEOUT", "7s")

	opts := newTestOptions()
	var ran bool
	a := NewApp(
		WithName("testapp"),
		WithNoVersion(),
		WithOptions(opts),
		WithRunFunc(func() error { ran = true; return nil }),
	)
	a.Command().SetArgs([]string{"--config", cfg, "--server.addr=:3"})
	require.NoError(t, a.Command().Execute())

	assert.True(t, ran)
	assert.True(t, opts.completed)
	assert.Equal(t, ":3", opts.Server.Addr)
	assert.Equal(t, 7*time.Second, opts.Server.Timeout)
	assert.Equal(t, "from-file-env", opts.Name)
}

func TestValidateFailure(t *testing.T) {
	opts := newTestOptions()
	a := NewApp(WithName("testapp"), WithNoVersion(), WithNoConfig(), WithOptions(opts))
	a.Command().SetArgs([]string{"--server.addr="})
	assert.EqualError(t, a.Command().Execute(), "addr required")
}
