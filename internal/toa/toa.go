// Package toa speaks the Tile Over Air protocol: MEP packet framing, HMAC
// signing, the challenge/response handshake and the signed commands that ride
// on an authenticated channel (ring, song upload).
//
// A Session is bound to one device.Connection and is discarded when that
// connection closes.
package toa

// GATT surface of a Tile.
const (
	ServiceUUID  = "0000feed-0000-1000-8000-00805f9b34fb"
	CommandUUID  = "9d410018-35d6-f4dd-ba60-e7bd8dc491c0" // write without response
	ResponseUUID = "9d410019-35d6-f4dd-ba60-e7bd8dc491c0" // notify
	TileIDUUID   = "9d410007-35d6-f4dd-ba60-e7bd8dc491c0" // read, optional
)

// TOA prefixes. Request and response prefixes overlap numerically.
const (
	PrefixReady         byte = 1
	PrefixSong          byte = 5
	PrefixSongResponse  byte = 7
	PrefixConfirm       byte = 16
	PrefixOpenChannel   byte = 18
	PrefixTDIRequest    byte = 19
	PrefixCloseChannel  byte = 19
	PrefixTDIResponse   byte = 20
	PrefixAuthRequest   byte = 20
	PrefixAuthResponse  byte = 21
	PrefixAssociate     byte = 27
	PrefixErrorResponse byte = 32
)

// TDI request types.
const (
	tdiFeatures byte = 1
	tdiTileID   byte = 2
	tdiFirmware byte = 3
	tdiModel    byte = 4
	tdiHardware byte = 5
)

// Song sub-commands carried on PrefixSong.
const (
	songPlay         byte = 2
	songProgramReady byte = 4
	songProgramData  byte = 5
)

const (
	randALen      = 14
	randTLen      = 10
	sresTLen      = 4
	sessionKeyLen = 16
	signatureLen  = 4

	// DefaultMaxPayload applies until READY announces the real value.
	DefaultMaxPayload = 20
	// DefaultBytesPerBlock applies when the program-ready reply omits it.
	DefaultBytesPerBlock = 64
)
