package hardware

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// Packet types for the serial NeoPixel bridge. Each packet on the wire is
// the type byte, the little-endian payload, then a CRC32 (IEEE) of both.
const (
	packetInitialize uint8 = iota
	packetClear
	packetShow
)

// SerialRing drives a pixel ring hung off a serial bridge board. It is
// output only; boards wired this way pair it with Sim sensors.
type SerialRing struct {
	mu     sync.Mutex
	port   io.WriteCloser
	pixels int
	closed bool
}

// OpenSerialRing opens the bridge and sends the initialize packet telling it
// the strip length.
func OpenSerialRing(device string, baud int, pixels int) (*SerialRing, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open serial port")
	}
	r := &SerialRing{port: port, pixels: pixels}
	if err := r.writePacket(packetInitialize, uint16(pixels)); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "failed to initialize strip")
	}
	return r, nil
}

func (r *SerialRing) Size() int { return r.pixels }

func (r *SerialRing) Render(f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if len(f) != r.pixels {
		return errors.Errorf("frame has %d pixels, strip has %d", len(f), r.pixels)
	}
	return errors.Wrap(r.writePacket(packetShow, f.Bytes()), "failed to write frame")
}

func (r *SerialRing) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	return errors.Wrap(r.writePacket(packetClear, nil), "failed to clear strip")
}

func (r *SerialRing) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	// Best effort blank before dropping the port.
	r.writePacket(packetClear, nil)
	return r.port.Close()
}

// writePacket frames and writes one packet. Callers hold r.mu except during
// open, when the ring is not yet shared.
func (r *SerialRing) writePacket(typ uint8, payload interface{}) error {
	var buf bytes.Buffer
	buf.WriteByte(typ)
	if payload != nil {
		if err := binary.Write(&buf, binary.LittleEndian, payload); err != nil {
			return errors.Wrap(err, "failed to encode payload")
		}
	}
	sum := crc32.NewIEEE()
	sum.Write(buf.Bytes())
	if err := binary.Write(&buf, binary.LittleEndian, sum.Sum32()); err != nil {
		return errors.Wrap(err, "failed to encode checksum")
	}
	_, err := r.port.Write(buf.Bytes())
	return err
}
