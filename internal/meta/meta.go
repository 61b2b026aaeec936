package meta

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/yavtep/configs"
	"github.com/projecteru2/yavtep/pkg/store"
	"github.com/projecteru2/yavtep/pkg/terrors"
)

// Create .
func Create(res Resources) error {
	var data, err = res.Encode()
	if err != nil {
		return errors.Wrap(err, "failed to encode resources")
	}

	var ctx, cancel = Context(context.Background())
	defer cancel()

	if err := store.Create(ctx, data); err != nil {
		return errors.Wrap(err, "failed to create resources")
	}

	res.IncrVer()

	return nil
}

// Load .
func Load(res Resource) error {
	var ctx, cancel = Context(context.Background())
	defer cancel()

	var ver, err = store.Get(ctx, res.MetaKey(), res)
	if err != nil {
		return errors.Wrap(err, "failed to load resource")
	}

	res.SetVer(ver)

	return nil
}

// Exists .
func Exists(res Resource) (bool, error) {
	switch err := Load(res); {
	case err == nil:
		return true, nil
	case terrors.IsKeyNotExistsErr(err):
		return false, nil
	default:
		return false, err
	}
}

// Save .
func Save(res Resources) error {
	var data, err = res.Encode()
	if err != nil {
		return errors.Wrap(err, "failed to encode resources")
	}

	var ctx, cancel = Context(context.Background())
	defer cancel()

	if err := store.Update(ctx, data, res.Vers()); err != nil {
		return errors.Wrap(err, "failed to update resources")
	}

	res.IncrVer()

	return nil
}

// Upsert stores the resources regardless of their current versions.
func Upsert(res Resources) error {
	switch err := Create(res); {
	case err == nil:
		return nil
	case !terrors.IsKeyExistsErr(err):
		return err
	}

	var data, err = res.Encode()
	if err != nil {
		return errors.Wrap(err, "failed to encode resources")
	}

	var ctx, cancel = Context(context.Background())
	defer cancel()

	return store.Update(ctx, data, map[string]int64{})
}

// Delete .
func Delete(res Resources) error {
	var ctx, cancel = Context(context.Background())
	defer cancel()

	if err := store.Delete(ctx, res.Keys(), map[string]int64{}); err != nil {
		return errors.Wrap(err, "failed to delete resources")
	}

	return nil
}

// Context .
func Context(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, configs.Conf.MetaTimeout.Duration())
}
