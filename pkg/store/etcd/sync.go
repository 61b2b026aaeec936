package etcd

import (
	"context"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/yavtep/pkg/utils"
)

// Mutex .
type Mutex struct {
	mutex   *concurrency.Mutex
	session *concurrency.Session
}

// NewMutex .
func NewMutex(cli *clientv3.Client, key string) (utils.Locker, error) {
	var sess, err = concurrency.NewSession(cli)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create etcd session")
	}

	return &Mutex{
		mutex:   concurrency.NewMutex(sess, key),
		session: sess,
	}, nil
}

// Lock .
func (m *Mutex) Lock(ctx context.Context) (utils.Unlocker, error) {
	if err := m.mutex.Lock(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to lock")
	}
	return m.Unlock, nil
}

// Unlock .
func (m *Mutex) Unlock(ctx context.Context) (err error) {
	defer func() {
		if e := m.session.Close(); e != nil && err == nil {
			err = e
		}
	}()
	return m.mutex.Unlock(ctx)
}
