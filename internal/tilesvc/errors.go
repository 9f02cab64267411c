package tilesvc

import "errors"

// Errors returned by Service operations. Causes are wrapped with %w so
// errors.Is/As still reach transport and protocol errors underneath.
var (
	ErrOperationInProgress  = errors.New("operation already in progress for this tile")
	ErrTagNotReachable      = errors.New("tile not found via Bluetooth")
	ErrNoAuthKey            = errors.New("tile has no usable auth key")
	ErrAuthenticationFailed = errors.New("tile authentication failed")
	ErrConnectFailed        = errors.New("failed to connect to tile")
	ErrOperationFailed      = errors.New("tile operation failed")
)

// Succeeded is the boolean view of an operation result.
func Succeeded(err error) bool {
	return err == nil
}
