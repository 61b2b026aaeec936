package store

import (
	"context"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/yavtep/pkg/store/etcd"
	"github.com/projecteru2/yavtep/pkg/terrors"
	"github.com/projecteru2/yavtep/pkg/utils"
)

// Store .
type Store interface {
	Create(ctx context.Context, data map[string]string, opts ...clientv3.OpOption) error

	Get(ctx context.Context, key string, obj any, opts ...clientv3.OpOption) (ver int64, err error)
	GetPrefix(ctx context.Context, prefix string, limit int64) (data map[string][]byte, vers map[string]int64, err error)
	Exists(ctx context.Context, keys []string) (exists map[string]bool, err error)

	Update(ctx context.Context, data map[string]string, vers map[string]int64, opts ...clientv3.OpOption) error
	BatchOperate(ctx context.Context, ops []clientv3.Op, cmps ...clientv3.Cmp) (succeeded bool, err error)
	Delete(ctx context.Context, keys []string, vers map[string]int64, opts ...clientv3.OpOption) error
	DeletePrefix(ctx context.Context, prefix string) error

	Close() error

	IncrUint32(ctx context.Context, key string) (uint32, error)
	NewMutex(key string) (utils.Locker, error)
}

// New .
func New(metatype string) (Store, error) {
	switch metatype {
	case "etcd", "":
		return etcd.New()
	default:
		return nil, errors.Wrapf(terrors.ErrInvalidValue, "invalid meta type: %s", metatype)
	}
}

var store Store

// Setup .
func Setup(metatype string) (err error) {
	store, err = New(metatype)
	return
}

// SetStore .
func SetStore(s Store) {
	store = s
}

// GetStore .
func GetStore() Store {
	return store
}

// Create .
func Create(ctx context.Context, data map[string]string, opts ...clientv3.OpOption) error {
	return store.Create(ctx, data, opts...)
}

// Get .
func Get(ctx context.Context, key string, obj any, opts ...clientv3.OpOption) (int64, error) {
	return store.Get(ctx, key, obj, opts...)
}

// GetPrefix .
func GetPrefix(ctx context.Context, prefix string, limit int64) (map[string][]byte, map[string]int64, error) {
	return store.GetPrefix(ctx, prefix, limit)
}

// Exists .
func Exists(ctx context.Context, keys []string) (map[string]bool, error) {
	return store.Exists(ctx, keys)
}

// Update .
func Update(ctx context.Context, data map[string]string, vers map[string]int64, opts ...clientv3.OpOption) error {
	return store.Update(ctx, data, vers, opts...)
}

// BatchOperate .
func BatchOperate(ctx context.Context, ops []clientv3.Op, cmps ...clientv3.Cmp) (bool, error) {
	return store.BatchOperate(ctx, ops, cmps...)
}

// Delete .
func Delete(ctx context.Context, keys []string, vers map[string]int64, opts ...clientv3.OpOption) error {
	return store.Delete(ctx, keys, vers, opts...)
}

// DeletePrefix .
func DeletePrefix(ctx context.Context, prefix string) error {
	return store.DeletePrefix(ctx, prefix)
}

// IncrUint32 .
func IncrUint32(ctx context.Context, key string) (uint32, error) {
	return store.IncrUint32(ctx, key)
}

// NewMutex .
func NewMutex(key string) (utils.Locker, error) {
	return store.NewMutex(key)
}

// Close .
func Close() error {
	if store == nil {
		return nil
	}
	return store.Close()
}
