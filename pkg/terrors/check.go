package terrors

import "github.com/cockroachdb/errors"

// IsKeyNotExistsErr .
func IsKeyNotExistsErr(err error) bool {
	return errors.Is(err, ErrKeyNotExists)
}

// IsKeyExistsErr .
func IsKeyExistsErr(err error) bool {
	return errors.Is(err, ErrKeyExists)
}

// IsOVSDBErr .
func IsOVSDBErr(err error) bool {
	return errors.Is(err, ErrOVSDBError)
}

// IsTransportErr reports whether the failure should be retried through the
// pending queue rather than surfaced as fatal.
func IsTransportErr(err error) bool {
	return errors.Is(err, ErrSessionClosed) ||
		errors.Is(err, ErrCallTimeout) ||
		errors.Is(err, ErrConnectFailed) ||
		errors.Is(err, ErrOVSDBDisconnected) ||
		errors.Is(err, ErrOVSDBTimeout)
}

// IsFramingErr .
func IsFramingErr(err error) bool {
	return errors.Is(err, ErrFramingBroken)
}

// IsDuplicateSegmentationErr .
func IsDuplicateSegmentationErr(err error) bool {
	return errors.Is(err, ErrDuplicateSegmentation)
}

// IsETCDServerTimedOutErr .
func IsETCDServerTimedOutErr(err error) bool {
	return err != nil && err.Error() == "etcdserver: request timed out"
}
