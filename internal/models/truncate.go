package models

import (
	"context"

	"github.com/projecteru2/yavtep/internal/meta"
	"github.com/projecteru2/yavtep/pkg/store"
)

// TruncateOvsdbState drops every table projection under one OVSDB so a
// fresh monitor snapshot can be applied idempotently. The pending queue
// survives; it drains separately.
func TruncateOvsdbState(ovsdbID string) error {
	var ctx, cancel = meta.Context(context.Background())
	defer cancel()

	prefixes := []string{
		meta.PhysicalSwitchesPrefix(ovsdbID),
		meta.PhysicalPortsPrefix(ovsdbID),
		meta.LogicalSwitchesPrefix(ovsdbID),
		meta.PhysicalLocatorsPrefix(ovsdbID),
		meta.UcastMacsLocalPrefix(ovsdbID),
		meta.UcastMacsRemotePrefix(ovsdbID),
		meta.VlanBindingsPrefix(ovsdbID),
	}
	for _, prefix := range prefixes {
		if err := store.DeletePrefix(ctx, prefix); err != nil {
			return err
		}
	}
	return nil
}
