package nvram

import "fmt"

// MemDevice is a test double holding the image in memory. The zero value
// is not usable; NewMemDevice returns a fully erased device.
type MemDevice struct {
	// Buf is the raw image, directly inspectable by tests.
	Buf [Size]byte

	// WriteErr, if set, is returned by every WriteAt.
	WriteErr error

	// ReadErr, if set, is returned by every ReadAt.
	ReadErr error

	// SyncErr, if set, is returned by Sync.
	SyncErr error

	// Writes counts WriteAt calls, failed ones included.
	Writes int

	// Closed tracks if Close was called.
	Closed bool
}

// NewMemDevice returns a device in the erased state, as an unprogrammed
// part would read.
func NewMemDevice() *MemDevice {
	d := &MemDevice{}
	for i := range d.Buf {
		d.Buf[i] = erasedByte
	}
	return d
}

func (d *MemDevice) ReadAt(p []byte, off int64) (int, error) {
	if d.ReadErr != nil {
		return 0, d.ReadErr
	}
	if off < 0 || off >= Size {
		return 0, fmt.Errorf("read at %d outside device", off)
	}
	n := copy(p, d.Buf[off:])
	if n < len(p) {
		return n, fmt.Errorf("read of %d bytes at %d runs past device end", len(p), off)
	}
	return n, nil
}

func (d *MemDevice) WriteAt(p []byte, off int64) (int, error) {
	d.Writes++
	if d.WriteErr != nil {
		return 0, d.WriteErr
	}
	if off < 0 || off >= Size {
		return 0, fmt.Errorf("write at %d outside device", off)
	}
	n := copy(d.Buf[off:], p)
	if n < len(p) {
		return n, fmt.Errorf("write of %d bytes at %d runs past device end", len(p), off)
	}
	return n, nil
}

func (d *MemDevice) Sync() error { return d.SyncErr }

// Close marks the device as closed.
func (d *MemDevice) Close() error {
	d.Closed = true
	return nil
}
