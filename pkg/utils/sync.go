package utils

import (
	"context"
)

// Locker .
type Locker interface {
	Lock(context.Context) (Unlocker, error)
}

// Unlocker func.
type Unlocker func(context.Context) error
