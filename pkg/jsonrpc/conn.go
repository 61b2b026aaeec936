package jsonrpc

import (
	"context"
	"crypto/tls"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"go.etcd.io/etcd/client/pkg/v3/transport"

	"github.com/projecteru2/yavtep/configs"
	"github.com/projecteru2/yavtep/pkg/terrors"
)

const dialRetryDelay = time.Second

// TLSConfigFor loads mutual-auth TLS material for the named remote from
// the configured directory. The three files <name>.key, <name>.crt and
// <name>.ca must either all exist, which enables TLS, or none of them,
// which keeps the socket plain.
func TLSConfigFor(name string, server bool) (*tls.Config, error) {
	dir := configs.Conf.Ovsdb.TLSDir
	if dir == "" {
		return nil, nil
	}

	var (
		key = filepath.Join(dir, name+".key")
		crt = filepath.Join(dir, name+".crt")
		ca  = filepath.Join(dir, name+".ca")

		present int
	)
	for _, fn := range []string{key, crt, ca} {
		if _, err := os.Stat(fn); err == nil {
			present++
		}
	}

	switch present {
	case 0:
		return nil, nil
	case 3:
	default:
		return nil, errors.Wrapf(terrors.ErrTLSMaterialIncomplete, "%s has %d of 3 files for %s", dir, present, name)
	}

	info := transport.TLSInfo{
		KeyFile:        key,
		CertFile:       crt,
		TrustedCAFile:  ca,
		ClientCertAuth: server,
	}
	if server {
		return info.ServerConfig()
	}
	return info.ClientConfig()
}

// Dial opens the active-mode connection to one gateway, retrying with a
// constant delay up to the configured maximum before giving up for this
// cycle.
func Dial(ctx context.Context, gw configs.Gateway) (net.Conn, error) {
	tlsConf, err := TLSConfigFor(gw.Name, false)
	if err != nil {
		return nil, err
	}

	var conn net.Conn
	dial := func() error {
		d := net.Dialer{Timeout: configs.Conf.Ovsdb.SocketTimeout.Duration()}
		c, err := d.DialContext(ctx, "tcp", gw.Addr())
		if err != nil {
			return err
		}

		if tlsConf != nil {
			tc := tls.Client(c, tlsConf)
			if err := tc.HandshakeContext(ctx); err != nil {
				c.Close()
				return err
			}
			c = tc
		}

		conn = c
		return nil
	}

	bf := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(dialRetryDelay),
			uint64(configs.Conf.Ovsdb.MaxConnectionRetries),
		),
		ctx,
	)
	if err := backoff.Retry(dial, bf); err != nil {
		return nil, errors.Wrapf(terrors.ErrConnectFailed, "%s: %v", gw.Addr(), err)
	}

	return conn, nil
}

// Listen binds the manager-mode port. VTEPs configured with set-manager
// dial in; each accepted socket becomes an independent session keyed by
// its peer address.
func Listen(name, addr string) (net.Listener, error) {
	tlsConf, err := TLSConfigFor(name, true)
	if err != nil {
		return nil, err
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", addr)
	}

	if tlsConf != nil {
		lis = tls.NewListener(lis, tlsConf)
	}

	return lis, nil
}
