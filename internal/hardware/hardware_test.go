package hardware

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"
)

func TestWheelDarkBand(t *testing.T) {
	for _, mode := range []ColorMode{ModeRainbow, ModePink, ModeBlue} {
		for pos := 0; pos < 40; pos++ {
			if c := Wheel(mode, pos); c != (RGB{}) {
				t.Fatalf("mode %d pos %d: got %v, want dark", mode, pos, c)
			}
		}
		if c := Wheel(mode, 40); c == (RGB{}) {
			t.Fatalf("mode %d pos 40: still dark", mode)
		}
	}
}

func TestWheelWrapsPosition(t *testing.T) {
	if got, want := Wheel(ModeRainbow, 256+50), Wheel(ModeRainbow, 50); got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFrameScaleAndBytes(t *testing.T) {
	f := NewFrame(2)
	f[0] = RGB{200, 100, 50}
	f[1] = RGB{10, 20, 30}
	f.Scale(0.5)
	if f[0] != (RGB{100, 50, 25}) {
		t.Fatalf("scaled pixel 0 = %v", f[0])
	}
	want := []uint8{100, 50, 25, 5, 10, 15}
	if !bytes.Equal(f.Bytes(), want) {
		t.Fatalf("bytes = %v, want %v", f.Bytes(), want)
	}
}

func TestSimConsumesMotionEdges(t *testing.T) {
	s := NewSim(10)
	s.InjectTap()
	s.SetMagnitude(1.2)

	m, err := s.Motion()
	if err != nil {
		t.Fatal(err)
	}
	if !m.Tapped || m.Shaken {
		t.Fatalf("first read = %+v", m)
	}
	if m.Magnitude != 1.2 {
		t.Fatalf("magnitude = %v", m.Magnitude)
	}

	m, _ = s.Motion()
	if m.Tapped {
		t.Fatal("tap not consumed on read")
	}
	if m.Magnitude != 1.2 {
		t.Fatal("magnitude should persist across reads")
	}
}

func TestSimRejectsUseAfterClose(t *testing.T) {
	s := NewSim(10)
	s.Close()
	if err := s.Render(NewFrame(10)); err != ErrClosed {
		t.Fatalf("Render after close = %v", err)
	}
	if _, err := s.Buttons(); err != ErrClosed {
		t.Fatalf("Buttons after close = %v", err)
	}
}

type captureCloser struct {
	bytes.Buffer
	closed bool
}

func (c *captureCloser) Close() error {
	c.closed = true
	return nil
}

func TestSerialRingFraming(t *testing.T) {
	cap := &captureCloser{}
	r := &SerialRing{port: cap, pixels: 2}

	f := NewFrame(2)
	f[0] = RGB{1, 2, 3}
	f[1] = RGB{4, 5, 6}
	if err := r.Render(f); err != nil {
		t.Fatal(err)
	}

	body := append([]byte{packetShow}, 1, 2, 3, 4, 5, 6)
	var want bytes.Buffer
	want.Write(body)
	binary.Write(&want, binary.LittleEndian, crc32.ChecksumIEEE(body))
	if !bytes.Equal(cap.Bytes(), want.Bytes()) {
		t.Fatalf("wire = %x, want %x", cap.Bytes(), want.Bytes())
	}
}

func TestSerialRingRejectsWrongFrameSize(t *testing.T) {
	r := &SerialRing{port: &captureCloser{}, pixels: 10}
	if err := r.Render(NewFrame(3)); err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestSerialRingCloseBlanksAndCloses(t *testing.T) {
	cap := &captureCloser{}
	r := &SerialRing{port: cap, pixels: 2}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if !cap.closed {
		t.Fatal("port not closed")
	}
	if cap.Len() == 0 || cap.Bytes()[0] != packetClear {
		t.Fatal("expected clear packet before close")
	}
	if err := r.Render(NewFrame(2)); err != ErrClosed {
		t.Fatalf("Render after close = %v", err)
	}
}
