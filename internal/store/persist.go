package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// SaveSnapshot writes the persisted part of the state to path as
// zstd-compressed JSON. The file is replaced atomically.
func (s *Store) SaveSnapshot(path string) error {
	st, err := s.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshotting state: %w", err)
	}
	return WriteSnapshot(path, st)
}

// WriteSnapshot encodes st to path through a temp file and rename.
func WriteSnapshot(path string, st *State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating directories: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	err = encodeSnapshot(f, st)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing snapshot: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func encodeSnapshot(w io.Writer, st *State) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(st); err != nil {
		enc.Close()
		return fmt.Errorf("encoding state: %w", err)
	}
	return enc.Close()
}

// LoadSnapshot reads a snapshot written by SaveSnapshot. A missing file
// yields an empty state. The connection is always restored as
// disconnected so the next connect is treated as a reconnect.
func LoadSnapshot(path string) (*State, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	st := &State{}
	if err := json.NewDecoder(dec).Decode(st); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	st.ensure()

	if st.Connection.Connected {
		st.Connection.Connected = false
		st.Connection.LastDisconnectAt = st.Connection.LastConnectAt
	}
	return st, nil
}
