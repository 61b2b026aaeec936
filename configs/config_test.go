package configs

import (
	"testing"
	"time"

	"github.com/projecteru2/yavtep/pkg/test/assert"
)

func TestDefaultTemplate(t *testing.T) {
	cfg := newDefault()
	assert.Equal(t, 30*time.Second, cfg.Ovsdb.SocketTimeout.Duration())
	assert.Equal(t, 10, cfg.Ovsdb.MaxConnectionRetries)
	assert.Equal(t, 30*time.Second, cfg.Agent.ReportInterval.Duration())
	assert.Equal(t, 90*time.Second, cfg.Plugin.AgentDownTime.Duration())
	assert.False(t, cfg.Ovsdb.EnableManager)
}

func TestParseGateways(t *testing.T) {
	ss := `
[ovsdb]
gateways = ["vtep1:10.32.1.5:6632", "vtep2:10.32.1.6:6640"]
	`
	cfg := Config{}
	assert.NilErr(t, Decode(ss, &cfg))

	gws, err := cfg.ParseGateways()
	assert.NilErr(t, err)
	assert.Equal(t, 2, len(gws))
	assert.Equal(t, "10.32.1.5:6632", gws["vtep1"].Addr())
	assert.Equal(t, 6640, gws["vtep2"].Port)
}

func TestParseGatewaysRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"vtep1:10.32.1.5", "vtep1:10.32.1.5:x", "a:b:1:2"} {
		cfg := Config{Ovsdb: OVSDBConfig{Gateways: []string{raw}}}
		_, err := cfg.ParseGateways()
		assert.Err(t, err)
	}

	dup := Config{Ovsdb: OVSDBConfig{Gateways: []string{"v:1.2.3.4:1", "v:1.2.3.5:2"}}}
	_, err := dup.ParseGateways()
	assert.Err(t, err)
}
