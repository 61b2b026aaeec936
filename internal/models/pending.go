package models

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/yavtep/internal/meta"
	"github.com/projecteru2/yavtep/pkg/store"
)

// Pending op kinds.
const (
	PendingOpInsert = "insert"
	PendingOpUpdate = "update"
	PendingOpDelete = "delete"
)

// PendingUcastMacRemote is a Ucast_Macs_Remote write the remote refused
// (disconnected or timed out), persisted for replay upon reconnect.
type PendingUcastMacRemote struct {
	*meta.Ver `json:"-"`

	Seq               uint32 `json:"seq"`
	Op                string `json:"op"`
	OvsdbID           string `json:"ovsdb_identifier"`
	LogicalSwitchUUID string `json:"logical_switch_uuid"`
	LogicalSwitchName string `json:"logical_switch_name,omitempty"`
	MAC               string `json:"mac"`
	LocatorUUID       string `json:"locator_uuid,omitempty"`
	DstIP             string `json:"dst_ip,omitempty"`
	VMIP              string `json:"vm_ip,omitempty"`
	Timestamp         int64  `json:"timestamp"`
}

// MetaKey .
func (p *PendingUcastMacRemote) MetaKey() string {
	return meta.PendingKey(p.OvsdbID, p.Seq)
}

// Delete .
func (p *PendingUcastMacRemote) Delete() error {
	return meta.Delete(meta.Resources{p})
}

func (p *PendingUcastMacRemote) matches(other *PendingUcastMacRemote) bool {
	return p.OvsdbID == other.OvsdbID &&
		p.LogicalSwitchUUID == other.LogicalSwitchUUID &&
		p.LogicalSwitchName == other.LogicalSwitchName &&
		p.MAC == other.MAC
}

// EnqueuePendingUcastMacRemote persists the row, coalescing at enqueue time:
// an incoming delete that matches a pending insert or update cancels both,
// and a row matching a pending entry of the same op replaces it.
func EnqueuePendingUcastMacRemote(p *PendingUcastMacRemote) (enqueued bool, err error) {
	existing, err := ListPendingUcastMacsRemote(p.OvsdbID)
	if err != nil {
		return false, err
	}

	for _, old := range existing {
		if !old.matches(p) {
			continue
		}

		switch {
		case p.Op == PendingOpDelete && old.Op != PendingOpDelete:
			// a delete cancels the queued insert/update and itself
			return false, old.Delete()
		case p.Op == old.Op:
			if err := old.Delete(); err != nil {
				return false, err
			}
		}
	}

	var ctx, cancel = meta.Context(context.Background())
	defer cancel()

	seq, err := store.IncrUint32(ctx, meta.PendingCounterKey(p.OvsdbID))
	if err != nil {
		return false, errors.Wrap(err, "failed to allocate pending seq")
	}

	p.Ver = meta.NewVer()
	p.Seq = seq
	p.Timestamp = time.Now().UnixNano()

	if err := meta.Create(meta.Resources{p}); err != nil {
		return false, err
	}

	return true, nil
}

// ListPendingUcastMacsRemote returns the queue in ascending timestamp order.
func ListPendingUcastMacsRemote(ovsdbID string) ([]*PendingUcastMacRemote, error) {
	rows, err := listPrefix(meta.PendingPrefix(ovsdbID), func() *PendingUcastMacRemote {
		return &PendingUcastMacRemote{Ver: meta.NewVer(), OvsdbID: ovsdbID}
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp < rows[j].Timestamp })

	return rows, nil
}

// PurgePendingUcastMacsRemote drops the whole queue for one OVSDB. Pending
// ops never expire on their own; this is the operator path.
func PurgePendingUcastMacsRemote(ovsdbID string) error {
	var ctx, cancel = meta.Context(context.Background())
	defer cancel()

	return store.DeletePrefix(ctx, meta.PendingPrefix(ovsdbID))
}
