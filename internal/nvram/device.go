// Package nvram persists the monitor's durable state as a small
// fixed-layout byte image, the way it would live in an EEPROM part.
// Every field sits at a stable absolute offset so old images stay
// readable, and every field is range-checked on load so a corrupt or
// erased image degrades to defaults instead of poisoning the engine.
package nvram

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Size is the full device image in bytes. The tail past the last field
// is reserved for future fields and stays in the erased state.
const Size = 32

// erasedByte is the value of unprogrammed storage. A fresh image is
// filled with it so every field fails its range check and loads as the
// default.
const erasedByte = 0xFF

// Device is the raw storage under the record codec. Offsets are
// absolute; short reads and writes surface as errors.
type Device interface {
	io.ReaderAt
	io.WriterAt
	Sync() error
	Close() error
}

// FileDevice backs the image with an ordinary file.
type FileDevice struct {
	f *os.File
}

// OpenFile opens or creates the image file. A missing or short file is
// extended with erased bytes, matching an unprogrammed part, so first
// boot loads pure defaults.
func OpenFile(path string) (*FileDevice, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening state file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("inspecting state file: %w", err)
	}
	if info.Size() < Size {
		blank := make([]byte, Size-info.Size())
		for i := range blank {
			blank[i] = erasedByte
		}
		if _, err := f.WriteAt(blank, info.Size()); err != nil {
			f.Close()
			return nil, fmt.Errorf("initializing state file: %w", err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, fmt.Errorf("flushing state file: %w", err)
		}
	}
	return &FileDevice{f: f}, nil
}

func (d *FileDevice) ReadAt(p []byte, off int64) (int, error) { return d.f.ReadAt(p, off) }

func (d *FileDevice) WriteAt(p []byte, off int64) (int, error) { return d.f.WriteAt(p, off) }

func (d *FileDevice) Sync() error { return d.f.Sync() }

func (d *FileDevice) Close() error { return d.f.Close() }
