package models

import (
	"context"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/yavtep/internal/meta"
	"github.com/projecteru2/yavtep/pkg/store"
	"github.com/projecteru2/yavtep/pkg/terrors"
	"github.com/projecteru2/yavtep/pkg/utils"
)

func listPrefix[T meta.Resource](prefix string, mk func() T) ([]T, error) {
	var ctx, cancel = meta.Context(context.Background())
	defer cancel()

	data, vers, err := store.GetPrefix(ctx, prefix, 0)
	switch {
	case terrors.IsKeyNotExistsErr(err):
		return nil, nil
	case err != nil:
		return nil, errors.Wrapf(err, "failed to list %s", prefix)
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	objs := make([]T, 0, len(keys))
	for _, k := range keys {
		obj := mk()
		if err := utils.JSONDecode(data[k], obj); err != nil {
			return nil, errors.Wrapf(err, "broken record at %s", k)
		}
		obj.SetVer(vers[k])
		objs = append(objs, obj)
	}

	return objs, nil
}

// listSwitchRecords walks the whole ovsdb subtree and decodes only the
// keys under a switches/ segment, so the caller gets every identifier's
// switches in one round trip.
func listSwitchRecords(root string) ([]*PhysicalSwitch, error) {
	var ctx, cancel = meta.Context(context.Background())
	defer cancel()

	data, vers, err := store.GetPrefix(ctx, root, 0)
	switch {
	case terrors.IsKeyNotExistsErr(err):
		return nil, nil
	case err != nil:
		return nil, errors.Wrapf(err, "failed to list %s", root)
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		if strings.Contains(k, "/switches/") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	switches := make([]*PhysicalSwitch, 0, len(keys))
	for _, k := range keys {
		s := NewPhysicalSwitch("", "")
		if err := utils.JSONDecode(data[k], s); err != nil {
			return nil, errors.Wrapf(err, "broken record at %s", k)
		}
		s.SetVer(vers[k])
		switches = append(switches, s)
	}

	return switches, nil
}

func load[T meta.Resource](res T) (T, error) {
	var zero T
	if err := meta.Load(res); err != nil {
		return zero, err
	}
	return res, nil
}
