package protocol

import "encoding/binary"

// Button is a bitmask of the 14 digital buttons a single input frame
// carries. Bit order is fixed by index and never depends on platform or
// keyboard layout.
type Button uint16

const (
	ButtonUp Button = 1 << iota
	ButtonDown
	ButtonLeft
	ButtonRight
	ButtonA
	ButtonB
	ButtonX
	ButtonY
	ButtonL1
	ButtonR1
	ButtonL3
	ButtonR3
	ButtonStart
	ButtonSelect
)

// InputFrameSize is the fixed on-wire and in-guest-memory size of an
// InputFrame, in bytes. It is also the host-side mirror's record size,
// so a snapshot's input-state pair is exactly 2*InputFrameSize bytes
// per player.
const InputFrameSize = 24

// InputFrame is one player's input for one tick: 14 digital buttons,
// two analog sticks (signed 16-bit per axis), two analog triggers
// (unsigned 8-bit), for a single tick. The layout is little-endian and
// identical whether the frame is sitting in guest memory, in an
// InputFrame wire message, or inside a snapshot's host mirror.
type InputFrame struct {
	Tick    uint64
	Buttons Button
	StickLX int16
	StickLY int16
	StickRX int16
	StickRY int16
	TrigL   uint8
	TrigR   uint8
}

// Encode writes the frame into a fixed InputFrameSize-byte little-endian
// record.
func (f InputFrame) Encode() [InputFrameSize]byte {
	var b [InputFrameSize]byte
	binary.LittleEndian.PutUint64(b[0:8], f.Tick)
	binary.LittleEndian.PutUint16(b[8:10], uint16(f.Buttons))
	binary.LittleEndian.PutUint16(b[10:12], uint16(f.StickLX))
	binary.LittleEndian.PutUint16(b[12:14], uint16(f.StickLY))
	binary.LittleEndian.PutUint16(b[14:16], uint16(f.StickRX))
	binary.LittleEndian.PutUint16(b[16:18], uint16(f.StickRY))
	b[18] = f.TrigL
	b[19] = f.TrigR
	// b[20:24] reserved, always zero.
	return b
}

// DecodeInputFrame reads a fixed InputFrameSize-byte little-endian
// record back into an InputFrame.
func DecodeInputFrame(b [InputFrameSize]byte) InputFrame {
	return InputFrame{
		Tick:    binary.LittleEndian.Uint64(b[0:8]),
		Buttons: Button(binary.LittleEndian.Uint16(b[8:10])),
		StickLX: int16(binary.LittleEndian.Uint16(b[10:12])),
		StickLY: int16(binary.LittleEndian.Uint16(b[12:14])),
		StickRX: int16(binary.LittleEndian.Uint16(b[14:16])),
		StickRY: int16(binary.LittleEndian.Uint16(b[16:18])),
		TrigL:   b[18],
		TrigR:   b[19],
	}
}

// StickF32 converts a signed 16-bit axis to the guest-observable f32
// range [-1.0, 1.0], matching the deterministic fixed encoding the
// capability surface documents for analog reads.
func StickF32(axis int16) float32 {
	if axis < 0 {
		return float32(axis) / 32768.0
	}
	return float32(axis) / 32767.0
}

// TriggerF32 converts an unsigned 8-bit trigger value to [0.0, 1.0].
func TriggerF32(trig uint8) float32 {
	return float32(trig) / 255.0
}

// ChecksumMessage is the desync-detection message exchanged after every
// confirmed tick: {tick: u64, hash: u64} per the transport contract.
type ChecksumMessage struct {
	Tick uint64
	Hash uint64
}

// ChecksumMessageSize is the fixed wire size of a ChecksumMessage.
const ChecksumMessageSize = 16

// Encode writes the checksum message into a fixed-size little-endian
// record.
func (c ChecksumMessage) Encode() [ChecksumMessageSize]byte {
	var b [ChecksumMessageSize]byte
	binary.LittleEndian.PutUint64(b[0:8], c.Tick)
	binary.LittleEndian.PutUint64(b[8:16], c.Hash)
	return b
}

// DecodeChecksumMessage reads a ChecksumMessage back from its fixed-size
// wire encoding.
func DecodeChecksumMessage(b [ChecksumMessageSize]byte) ChecksumMessage {
	return ChecksumMessage{
		Tick: binary.LittleEndian.Uint64(b[0:8]),
		Hash: binary.LittleEndian.Uint64(b[8:16]),
	}
}

// Handshake is exchanged once, at session start, over the control
// channel. It pins the session-wide constants that every peer MUST
// agree on before a single tick is simulated.
type Handshake struct {
	Version       int
	SessionNonce  string // from internal/session, not a room/matchmaking code
	TickRate      int    // one of {24, 30, 60, 120}
	PlayerCount   int    // 1..4
	LocalMask     uint8  // bit i set = slot i is local to the sender
	InputDelay    int    // 0..10, identical on all peers
	MaxPrediction int    // small integer, e.g. 8
	FuelBudget    uint64 // 0 = fuel metering disabled
	Seed          uint64 // session-wide RNG seed
}

// handshakeNonceSize is the fixed wire width of SessionNonce: the
// session package's nonce format is always 8 characters plus a
// separating dash.
const handshakeNonceSize = 9

// HandshakeSize is the fixed wire size of a Handshake.
const HandshakeSize = 1 + handshakeNonceSize + 1 + 1 + 1 + 1 + 1 + 8 + 8

// Encode writes the handshake into a fixed HandshakeSize-byte
// little-endian record. SessionNonce is truncated or zero-padded to
// handshakeNonceSize bytes.
func (h Handshake) Encode() [HandshakeSize]byte {
	var b [HandshakeSize]byte
	b[0] = uint8(h.Version)
	copy(b[1:1+handshakeNonceSize], h.SessionNonce)
	off := 1 + handshakeNonceSize
	b[off] = uint8(h.TickRate)
	b[off+1] = uint8(h.PlayerCount)
	b[off+2] = h.LocalMask
	b[off+3] = uint8(h.InputDelay)
	b[off+4] = uint8(h.MaxPrediction)
	binary.LittleEndian.PutUint64(b[off+5:off+13], h.FuelBudget)
	binary.LittleEndian.PutUint64(b[off+13:off+21], h.Seed)
	return b
}

// DecodeHandshake reads a Handshake back from its fixed-size wire
// encoding.
func DecodeHandshake(b [HandshakeSize]byte) Handshake {
	off := 1 + handshakeNonceSize
	return Handshake{
		Version:       int(b[0]),
		SessionNonce:  string(b[1 : 1+handshakeNonceSize]),
		TickRate:      int(b[off]),
		PlayerCount:   int(b[off+1]),
		LocalMask:     b[off+2],
		InputDelay:    int(b[off+3]),
		MaxPrediction: int(b[off+4]),
		FuelBudget:    binary.LittleEndian.Uint64(b[off+5 : off+13]),
		Seed:          binary.LittleEndian.Uint64(b[off+13 : off+21]),
	}
}

// MsgType identifies the kind of payload carried by a control message.
type MsgType uint8

const (
	MsgHandshake MsgType = iota
	MsgInput
	MsgChecksum
	MsgDisconnect
	MsgPing
	MsgPong
)
