package ovsdb

import (
	"github.com/ovn-org/libovsdb/ovsdb"

	"github.com/projecteru2/yavtep/internal/meta"
	"github.com/projecteru2/yavtep/internal/models"
)

// TableEvent aggregates everything one inbound monitor message said,
// classified per table into created, modified and deleted records. The
// Initial event of a session carries the whole snapshot in the New
// lists.
type TableEvent struct {
	OvsdbID string
	Initial bool

	NewLogicalSwitches      []*models.LogicalSwitch
	ModifiedLogicalSwitches []*models.LogicalSwitch
	DeletedLogicalSwitches  []*models.LogicalSwitch

	NewPhysicalSwitches      []*models.PhysicalSwitch
	ModifiedPhysicalSwitches []*models.PhysicalSwitch
	DeletedPhysicalSwitches  []*models.PhysicalSwitch

	NewPhysicalPorts      []*PortRecord
	ModifiedPhysicalPorts []*PortRecord
	DeletedPhysicalPorts  []*PortRecord

	NewPhysicalLocators      []*models.PhysicalLocator
	ModifiedPhysicalLocators []*models.PhysicalLocator
	DeletedPhysicalLocators  []*models.PhysicalLocator

	NewUcastMacsLocal      []*models.UcastMacLocal
	ModifiedUcastMacsLocal []*models.UcastMacLocal
	DeletedUcastMacsLocal  []*models.UcastMacLocal

	NewUcastMacsRemote      []*models.UcastMacRemote
	ModifiedUcastMacsRemote []*models.UcastMacRemote
	DeletedUcastMacsRemote  []*models.UcastMacRemote

	NewMcastMacsLocal      []*McastMacLocal
	ModifiedMcastMacsLocal []*McastMacLocal
	DeletedMcastMacsLocal  []*McastMacLocal

	NewPhysicalLocatorSets      []*PhysicalLocatorSet
	ModifiedPhysicalLocatorSets []*PhysicalLocatorSet
	DeletedPhysicalLocatorSets  []*PhysicalLocatorSet
}

// Normalize reinstates the version bookkeeping records lose when the
// event crosses a JSON hop between agent and plugin.
func (ev *TableEvent) Normalize() {
	for _, lss := range [][]*models.LogicalSwitch{ev.NewLogicalSwitches, ev.ModifiedLogicalSwitches, ev.DeletedLogicalSwitches} {
		for _, ls := range lss {
			ls.Ver = meta.NewVer()
		}
	}
	for _, pss := range [][]*models.PhysicalSwitch{ev.NewPhysicalSwitches, ev.ModifiedPhysicalSwitches, ev.DeletedPhysicalSwitches} {
		for _, ps := range pss {
			ps.Ver = meta.NewVer()
		}
	}
	for _, ports := range [][]*PortRecord{ev.NewPhysicalPorts, ev.ModifiedPhysicalPorts, ev.DeletedPhysicalPorts} {
		for _, port := range ports {
			if port.PhysicalPort == nil {
				port.PhysicalPort = models.NewPhysicalPort(ev.OvsdbID, "")
				continue
			}
			port.Ver = meta.NewVer()
		}
	}
	for _, locs := range [][]*models.PhysicalLocator{ev.NewPhysicalLocators, ev.ModifiedPhysicalLocators, ev.DeletedPhysicalLocators} {
		for _, loc := range locs {
			loc.Ver = meta.NewVer()
		}
	}
	for _, macs := range [][]*models.UcastMacLocal{ev.NewUcastMacsLocal, ev.ModifiedUcastMacsLocal, ev.DeletedUcastMacsLocal} {
		for _, mac := range macs {
			mac.Ver = meta.NewVer()
		}
	}
	for _, macs := range [][]*models.UcastMacRemote{ev.NewUcastMacsRemote, ev.ModifiedUcastMacsRemote, ev.DeletedUcastMacsRemote} {
		for _, mac := range macs {
			mac.Ver = meta.NewVer()
		}
	}
}

type rowKind int

const (
	rowCreated rowKind = iota
	rowModified
	rowDeleted
)

func classify(ru *ovsdb.RowUpdate) (rowKind, *ovsdb.Row) {
	switch {
	case ru.New != nil && ru.Old != nil:
		return rowModified, ru.New
	case ru.New != nil:
		return rowCreated, ru.New
	default:
		return rowDeleted, ru.Old
	}
}

// ParseTableUpdates turns one monitor payload into a TableEvent. Ports
// listed by a Physical_Switch row in the same message get their
// ownership back-patched.
func ParseTableUpdates(ovsdbID string, tu ovsdb.TableUpdates) *TableEvent {
	ev := &TableEvent{OvsdbID: ovsdbID}
	portOwner := map[string]string{}

	for table, rows := range tu {
		for uuid, ru := range rows {
			if ru == nil {
				continue
			}
			kind, row := classify(ru)
			if row == nil {
				continue
			}

			switch table {
			case TableLogicalSwitch:
				ls := parseLogicalSwitch(ovsdbID, uuid, *row)
				switch kind {
				case rowCreated:
					ev.NewLogicalSwitches = append(ev.NewLogicalSwitches, ls)
				case rowModified:
					ev.ModifiedLogicalSwitches = append(ev.ModifiedLogicalSwitches, ls)
				default:
					ev.DeletedLogicalSwitches = append(ev.DeletedLogicalSwitches, ls)
				}

			case TablePhysicalSwitch:
				ps, ports := parsePhysicalSwitch(ovsdbID, uuid, *row)
				if kind != rowDeleted {
					for _, p := range ports {
						portOwner[p] = uuid
					}
				}
				switch kind {
				case rowCreated:
					ev.NewPhysicalSwitches = append(ev.NewPhysicalSwitches, ps)
				case rowModified:
					ev.ModifiedPhysicalSwitches = append(ev.ModifiedPhysicalSwitches, ps)
				default:
					ev.DeletedPhysicalSwitches = append(ev.DeletedPhysicalSwitches, ps)
				}

			case TablePhysicalPort:
				port := parsePhysicalPort(ovsdbID, uuid, *row)
				switch kind {
				case rowCreated:
					ev.NewPhysicalPorts = append(ev.NewPhysicalPorts, port)
				case rowModified:
					ev.ModifiedPhysicalPorts = append(ev.ModifiedPhysicalPorts, port)
				default:
					ev.DeletedPhysicalPorts = append(ev.DeletedPhysicalPorts, port)
				}

			case TablePhysicalLocator:
				loc := parsePhysicalLocator(ovsdbID, uuid, *row)
				switch kind {
				case rowCreated:
					ev.NewPhysicalLocators = append(ev.NewPhysicalLocators, loc)
				case rowModified:
					ev.ModifiedPhysicalLocators = append(ev.ModifiedPhysicalLocators, loc)
				default:
					ev.DeletedPhysicalLocators = append(ev.DeletedPhysicalLocators, loc)
				}

			case TableUcastMacsLocal:
				mac := parseUcastMacLocal(ovsdbID, uuid, *row)
				switch kind {
				case rowCreated:
					ev.NewUcastMacsLocal = append(ev.NewUcastMacsLocal, mac)
				case rowModified:
					ev.ModifiedUcastMacsLocal = append(ev.ModifiedUcastMacsLocal, mac)
				default:
					ev.DeletedUcastMacsLocal = append(ev.DeletedUcastMacsLocal, mac)
				}

			case TableUcastMacsRemote:
				mac := parseUcastMacRemote(ovsdbID, uuid, *row)
				switch kind {
				case rowCreated:
					ev.NewUcastMacsRemote = append(ev.NewUcastMacsRemote, mac)
				case rowModified:
					ev.ModifiedUcastMacsRemote = append(ev.ModifiedUcastMacsRemote, mac)
				default:
					ev.DeletedUcastMacsRemote = append(ev.DeletedUcastMacsRemote, mac)
				}

			case TableMcastMacsLocal:
				mac := parseMcastMacLocal(ovsdbID, uuid, *row)
				switch kind {
				case rowCreated:
					ev.NewMcastMacsLocal = append(ev.NewMcastMacsLocal, mac)
				case rowModified:
					ev.ModifiedMcastMacsLocal = append(ev.ModifiedMcastMacsLocal, mac)
				default:
					ev.DeletedMcastMacsLocal = append(ev.DeletedMcastMacsLocal, mac)
				}

			case TablePhysicalLocatorSet:
				set := parsePhysicalLocatorSet(ovsdbID, uuid, *row)
				switch kind {
				case rowCreated:
					ev.NewPhysicalLocatorSets = append(ev.NewPhysicalLocatorSets, set)
				case rowModified:
					ev.ModifiedPhysicalLocatorSets = append(ev.ModifiedPhysicalLocatorSets, set)
				default:
					ev.DeletedPhysicalLocatorSets = append(ev.DeletedPhysicalLocatorSets, set)
				}
			}
		}
	}

	for _, port := range ev.NewPhysicalPorts {
		if owner, ok := portOwner[port.UUID]; ok {
			port.PhysicalSwitchID = owner
		}
	}
	for _, port := range ev.ModifiedPhysicalPorts {
		if owner, ok := portOwner[port.UUID]; ok {
			port.PhysicalSwitchID = owner
		}
	}

	return ev
}
