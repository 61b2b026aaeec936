package mocks

import (
	"context"
	"strconv"
	"strings"
	"sync"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/yavtep/pkg/terrors"
	"github.com/projecteru2/yavtep/pkg/utils"
)

// FakeStore is an in-memory Store for tests.
type FakeStore struct {
	sync.Mutex
	kv   map[string]string
	vers map[string]int64
}

// NewFakeStore .
func NewFakeStore() *FakeStore {
	return &FakeStore{
		kv:   map[string]string{},
		vers: map[string]int64{},
	}
}

// Create .
func (f *FakeStore) Create(_ context.Context, data map[string]string, _ ...clientv3.OpOption) error {
	f.Lock()
	defer f.Unlock()

	for k := range data {
		if _, ok := f.kv[k]; ok {
			return errors.Wrapf(terrors.ErrKeyExists, "%s", k)
		}
	}
	for k, v := range data {
		f.kv[k] = v
		f.vers[k] = 1
	}
	return nil
}

// Get .
func (f *FakeStore) Get(_ context.Context, key string, obj any, _ ...clientv3.OpOption) (int64, error) {
	f.Lock()
	defer f.Unlock()

	raw, ok := f.kv[key]
	if !ok {
		return 0, errors.Wrapf(terrors.ErrKeyNotExists, "%s", key)
	}
	return f.vers[key], utils.JSONDecode([]byte(raw), obj)
}

// GetPrefix .
func (f *FakeStore) GetPrefix(_ context.Context, prefix string, limit int64) (map[string][]byte, map[string]int64, error) {
	f.Lock()
	defer f.Unlock()

	data := map[string][]byte{}
	vers := map[string]int64{}
	for k, v := range f.kv {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		data[k] = []byte(v)
		vers[k] = f.vers[k]
		if limit > 0 && int64(len(data)) >= limit {
			break
		}
	}

	if len(data) < 1 {
		return nil, nil, errors.Wrapf(terrors.ErrKeyNotExists, "%s", prefix)
	}
	return data, vers, nil
}

// Exists .
func (f *FakeStore) Exists(_ context.Context, keys []string) (map[string]bool, error) {
	f.Lock()
	defer f.Unlock()

	exists := map[string]bool{}
	for _, k := range keys {
		_, ok := f.kv[k]
		exists[k] = ok
	}
	return exists, nil
}

// Update .
func (f *FakeStore) Update(_ context.Context, data map[string]string, vers map[string]int64, _ ...clientv3.OpOption) error {
	f.Lock()
	defer f.Unlock()

	for k := range data {
		if ver, ok := vers[k]; ok && ver != f.vers[k] {
			return errors.Wrapf(terrors.ErrKeyBadVersion, "%s", k)
		}
	}
	for k, v := range data {
		f.kv[k] = v
		f.vers[k]++
	}
	return nil
}

// BatchOperate is not interpretable in memory; it succeeds vacuously.
func (f *FakeStore) BatchOperate(context.Context, []clientv3.Op, ...clientv3.Cmp) (bool, error) {
	return true, nil
}

// Delete .
func (f *FakeStore) Delete(_ context.Context, keys []string, _ map[string]int64, _ ...clientv3.OpOption) error {
	f.Lock()
	defer f.Unlock()

	for _, k := range keys {
		delete(f.kv, k)
		delete(f.vers, k)
	}
	return nil
}

// DeletePrefix .
func (f *FakeStore) DeletePrefix(_ context.Context, prefix string) error {
	f.Lock()
	defer f.Unlock()

	for k := range f.kv {
		if strings.HasPrefix(k, prefix) {
			delete(f.kv, k)
			delete(f.vers, k)
		}
	}
	return nil
}

// IncrUint32 .
func (f *FakeStore) IncrUint32(_ context.Context, key string) (uint32, error) {
	f.Lock()
	defer f.Unlock()

	n, _ := strconv.ParseUint(f.kv[key], 10, 32)
	n++
	f.kv[key] = strconv.FormatUint(n, 10)
	f.vers[key]++
	return uint32(n), nil
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context) (utils.Unlocker, error) {
	return func(context.Context) error { return nil }, nil
}

// NewMutex .
func (f *FakeStore) NewMutex(string) (utils.Locker, error) {
	return noopLocker{}, nil
}

// Close .
func (f *FakeStore) Close() error {
	return nil
}
