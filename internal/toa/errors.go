package toa

import (
	"errors"
	"fmt"
)

var (
	// ErrCharacteristicMissing means the tag lacks the command or response characteristic.
	ErrCharacteristicMissing = errors.New("required Tile characteristic missing")
	// ErrAuthTimeout means the handshake did not reach READY within the overall bound.
	ErrAuthTimeout = errors.New("authentication timed out")
	// ErrNotAuthenticated is returned by commands issued on a session that never reached READY.
	ErrNotAuthenticated = errors.New("session not authenticated")
	// ErrNotReady means the tag refused the program-ready negotiation.
	ErrNotReady = errors.New("tile not ready for programming")
)

// StepTimeoutError reports which handshake or command exchange stalled.
type StepTimeoutError struct {
	State  State
	Prefix byte
}

func (e *StepTimeoutError) Error() string {
	return fmt.Sprintf("timeout in %s waiting for prefix %d", e.State, e.Prefix)
}

// ProgramError is an error-class reply to an acknowledged song block.
type ProgramError struct {
	Block int
	Type  byte
	Code  byte
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("program block %d rejected: type=%d code=0x%02x", e.Block, e.Type, e.Code)
}
