package main

import (
	"errors"
	"fmt"

	"github.com/srg/tilectl/internal/device"
	"github.com/srg/tilectl/internal/song"
	"github.com/srg/tilectl/internal/songlib"
	"github.com/srg/tilectl/internal/tilesvc"
	"github.com/srg/tilectl/internal/toa"
	"github.com/srg/tilectl/pkg/config"
)

// Command-level errors
var (
	ErrNoTags       = errors.New("no tags given")
	ErrSongSource   = errors.New("exactly one of --preset, --notation, --song, --hex or --bionic-birdie is required")
	ErrSomeFailures = errors.New("some operations failed")
)

// FormatUserError turns an error chain into a one-line message. Known causes
// get a hint; everything else is printed as is.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var (
		stepErr    *toa.StepTimeoutError
		programErr *toa.ProgramError
		notFound   *device.NotFoundError
	)

	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off; enable it and try again"
	case errors.Is(err, tilesvc.ErrOperationInProgress):
		return "another operation is already running for this tile"
	case errors.Is(err, tilesvc.ErrNoAuthKey):
		return fmt.Sprintf("%v; add a base64 auth_key for the tag to the config file", err)
	case errors.Is(err, tilesvc.ErrTagNotReachable):
		return fmt.Sprintf("%v; make sure it is nearby and not connected to a phone", err)
	case errors.As(err, &programErr):
		return fmt.Sprintf("tile rejected song block %d (reply type %d, code %d)", programErr.Block, programErr.Type, programErr.Code)
	case errors.Is(err, toa.ErrNotReady):
		return "tile refused the song upload"
	case errors.Is(err, toa.ErrCharacteristicMissing):
		return "device does not expose the Tile service; is it a Tile?"
	case errors.Is(err, toa.ErrAuthTimeout):
		return "authentication timed out; check the auth key"
	case errors.Is(err, tilesvc.ErrAuthenticationFailed) && errors.As(err, &stepErr):
		return fmt.Sprintf("authentication failed: no reply while %s; check the auth key", stepErr.State)
	case errors.Is(err, tilesvc.ErrConnectFailed):
		return fmt.Sprintf("%v; move closer to the tile and retry", err)
	case errors.As(err, &notFound):
		return notFound.Error()
	case errors.Is(err, config.ErrTagNotFound):
		return fmt.Sprintf("%v; list configured tags with 'tilectl tags'", err)
	case errors.Is(err, song.ErrUnknownPreset):
		return err.Error()
	case errors.Is(err, songlib.ErrNotFound):
		return fmt.Sprintf("%v; list saved songs with 'tilectl songs list'", err)
	}
	return err.Error()
}
