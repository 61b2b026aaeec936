package configs

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"

	"go.etcd.io/etcd/client/pkg/v3/transport"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/yavtep/pkg/terrors"
)

// DefaultTemplate .
const DefaultTemplate = `
env = "dev"
hostname = ""
prof_http_port = 9999
graceful_timeout = "20s"
meta_timeout = "1m"

log_level = "info"
log_file = ""
log_sentry = ""

[etcd]
prefix = "/yavtep-dev/v1"
endpoints = ["http://127.0.0.1:2379"]

[ovsdb]
gateways = []
tls_dir = ""
enable_manager = false
manager_listen_addr = "0.0.0.0:6632"
max_connection_retries = 10
socket_timeout = "30s"
call_timeout = "10s"

[agent]
plugin_addr = "127.0.0.1:9698"
periodic_interval = "10s"
report_interval = "30s"
report_fail_tolerance = 3
use_call = false

[plugin]
bind_rpc_addr = "0.0.0.0:9698"
periodic_monitoring_interval = "30s"
agent_down_time = "90s"
endpoint_cache_ttl = "5m"
`

// Conf .
var Conf = newDefault()

// EtcdConfig .
type EtcdConfig struct {
	Prefix    string   `toml:"prefix"`
	Endpoints []string `toml:"endpoints"`
	Username  string   `toml:"username"`
	Password  string   `toml:"password"`
	CA        string   `toml:"ca"`
	Key       string   `toml:"key"`
	Cert      string   `toml:"cert"`
}

// OVSDBConfig .
type OVSDBConfig struct {
	// Gateways lists the configured OVSDBs as name:ip:port triples.
	Gateways             []string `toml:"gateways"`
	TLSDir               string   `toml:"tls_dir"`
	EnableManager        bool     `toml:"enable_manager"`
	ManagerListenAddr    string   `toml:"manager_listen_addr"`
	MaxConnectionRetries int      `toml:"max_connection_retries"`
	SocketTimeout        Duration `toml:"socket_timeout"`
	CallTimeout          Duration `toml:"call_timeout"`
}

// AgentConfig .
type AgentConfig struct {
	PluginAddr          string   `toml:"plugin_addr"`
	PeriodicInterval    Duration `toml:"periodic_interval"`
	ReportInterval      Duration `toml:"report_interval"`
	ReportFailTolerance int      `toml:"report_fail_tolerance"`
	UseCall             bool     `toml:"use_call"`
}

// PluginConfig .
type PluginConfig struct {
	BindRPCAddr                string   `toml:"bind_rpc_addr"`
	PeriodicMonitoringInterval Duration `toml:"periodic_monitoring_interval"`
	AgentDownTime              Duration `toml:"agent_down_time"`
	EndpointCacheTTL           Duration `toml:"endpoint_cache_ttl"`
}

// Config .
type Config struct {
	Env             string   `toml:"env"`
	Hostname        string   `toml:"hostname"`
	ProfHTTPPort    int      `toml:"prof_http_port"`
	GracefulTimeout Duration `toml:"graceful_timeout"`
	MetaTimeout     Duration `toml:"meta_timeout"`

	LogLevel  string `toml:"log_level"`
	LogFile   string `toml:"log_file"`
	LogSentry string `toml:"log_sentry"`

	Etcd   EtcdConfig   `toml:"etcd"`
	Ovsdb  OVSDBConfig  `toml:"ovsdb"`
	Agent  AgentConfig  `toml:"agent"`
	Plugin PluginConfig `toml:"plugin"`
}

func newDefault() Config {
	var conf Config
	if err := Decode(DefaultTemplate, &conf); err != nil {
		panic(fmt.Sprintf("broken default config template: %v", err))
	}
	return conf
}

// Dump .
func (c *Config) Dump() (string, error) {
	return Encode(c)
}

// Load .
func (c *Config) Load(files []string) error {
	for _, path := range files {
		if err := DecodeFile(path, c); err != nil {
			return errors.Wrapf(err, "failed to load %s", path)
		}
	}

	if len(c.Hostname) < 1 {
		hn, err := os.Hostname()
		if err != nil {
			return errors.Wrap(err, "failed to get hostname")
		}
		c.Hostname = hn
	}

	return nil
}

// NewEtcdConfig .
func (c *Config) NewEtcdConfig() (etcdcnf clientv3.Config, err error) {
	etcdcnf.Endpoints = c.Etcd.Endpoints
	etcdcnf.Username = c.Etcd.Username
	etcdcnf.Password = c.Etcd.Password
	etcdcnf.TLS, err = c.newEtcdTLSConfig()
	return
}

func (c *Config) newEtcdTLSConfig() (*tls.Config, error) {
	if len(c.Etcd.CA) < 1 || len(c.Etcd.Key) < 1 || len(c.Etcd.Cert) < 1 {
		return nil, nil
	}

	return transport.TLSInfo{
		TrustedCAFile: c.Etcd.CA,
		KeyFile:       c.Etcd.Key,
		CertFile:      c.Etcd.Cert,
	}.ClientConfig()
}

// Gateway is one parsed name:ip:port triple.
type Gateway struct {
	Name string
	IP   string
	Port int
}

// Addr .
func (g Gateway) Addr() string {
	return fmt.Sprintf("%s:%d", g.IP, g.Port)
}

// ParseGateways parses the configured triples keyed by ovsdb_identifier.
func (c *Config) ParseGateways() (map[string]Gateway, error) {
	var gws = make(map[string]Gateway, len(c.Ovsdb.Gateways))

	for _, raw := range c.Ovsdb.Gateways {
		parts := strings.Split(raw, ":")
		if len(parts) != 3 {
			return nil, errors.Wrapf(terrors.ErrInvalidValue, "malformed gateway triple %q", raw)
		}

		port, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, errors.Wrapf(terrors.ErrInvalidValue, "malformed gateway port %q", raw)
		}

		if _, ok := gws[parts[0]]; ok {
			return nil, errors.Wrapf(terrors.ErrInvalidValue, "duplicate gateway name %q", parts[0])
		}

		gws[parts[0]] = Gateway{Name: parts[0], IP: parts[1], Port: port}
	}

	return gws, nil
}
