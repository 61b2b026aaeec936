package models

import (
	"time"

	"github.com/projecteru2/yavtep/internal/meta"
)

// Agent types and roles.
const (
	AgentTypeL2Gateway = "L2 gateway agent"

	RoleMonitor  = "Monitor"
	RoleTransact = "Transact"
)

// Agent is the registry record an agent reports on each heartbeat.
type Agent struct {
	*meta.Ver `json:"-"`

	Hostname    string `json:"hostname"`
	Type        string `json:"agent_type"`
	StartedAt   int64  `json:"started_at"`
	HeartbeatAt int64  `json:"heartbeat_at"`
	Role        string `json:"role,omitempty"`
}

// NewAgent .
func NewAgent(hostname string) *Agent {
	return &Agent{
		Ver:      meta.NewVer(),
		Hostname: hostname,
		Type:     AgentTypeL2Gateway,
	}
}

// MetaKey .
func (a *Agent) MetaKey() string {
	return meta.AgentKey(a.Hostname)
}

// Save .
func (a *Agent) Save() error {
	return meta.Upsert(meta.Resources{a})
}

// Delete .
func (a *Agent) Delete() error {
	return meta.Delete(meta.Resources{a})
}

// Alive reports whether the last heartbeat is within downTime.
func (a *Agent) Alive(downTime time.Duration) bool {
	return time.Since(time.Unix(0, a.HeartbeatAt)) < downTime
}

// LoadAgent .
func LoadAgent(hostname string) (*Agent, error) {
	return load(NewAgent(hostname))
}

// ListAgents .
func ListAgents() ([]*Agent, error) {
	return listPrefix(meta.AgentsPrefix(), func() *Agent {
		return &Agent{Ver: meta.NewVer()}
	})
}
