package meta

import "sync/atomic"

// Ver tracks the etcd key version of a loaded resource.
type Ver struct {
	ver atomic.Int64
}

// NewVer .
func NewVer() *Ver {
	return &Ver{}
}

// SetVer .
func (v *Ver) SetVer(ver int64) {
	v.ver.Store(ver)
}

// IncrVer .
func (v *Ver) IncrVer() {
	v.ver.Add(1)
}

// GetVer .
func (v *Ver) GetVer() int64 {
	return v.ver.Load()
}
