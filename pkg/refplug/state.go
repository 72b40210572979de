package refplug

import (
	"errors"
	"fmt"
	"io"

	"github.com/justyntemme/claphost/pkg/clap"
)

const (
	stateMagic   = "CHRP"
	stateVersion = 1
)

var errBadState = errors.New("invalid state format")

// saveParams writes the parameter values, skipping ids for which skip
// returns true.
func saveParams(s *clap.OutputStream, params *paramSet, skip func(id uint32) bool) error {
	w := clap.NewStreamWriter(s)
	if w == nil {
		return errBadState
	}
	if _, err := w.Write([]byte(stateMagic)); err != nil {
		return err
	}
	if err := w.WriteUint32(stateVersion); err != nil {
		return err
	}

	var saved []*parameter
	for _, p := range params.list {
		if skip == nil || !skip(p.info.ID) {
			saved = append(saved, p)
		}
	}
	if err := w.WriteUint32(uint32(len(saved))); err != nil {
		return err
	}
	for _, p := range saved {
		if err := w.WriteUint32(p.info.ID); err != nil {
			return err
		}
		if err := w.WriteFloat64(p.get()); err != nil {
			return err
		}
	}
	return nil
}

// loadParams reads values written by saveParams. Unknown ids are ignored so
// newer states load into older plugins.
func loadParams(s *clap.InputStream, params *paramSet, skip func(id uint32) bool) error {
	r := clap.NewStreamReader(s)
	if r == nil {
		return errBadState
	}
	header := make([]byte, len(stateMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if string(header) != stateMagic {
		return errBadState
	}
	version, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if version > stateVersion {
		return fmt.Errorf("state version %d is newer than supported version %d", version, stateVersion)
	}
	count, err := r.ReadUint32()
	if err != nil {
		return err
	}

	values := make(map[uint32]float64, min(count, uint32(len(params.list))))
	for i := uint32(0); i < count; i++ {
		id, err := r.ReadUint32()
		if err != nil {
			return err
		}
		v, err := r.ReadFloat64()
		if err != nil {
			return err
		}
		values[id] = v
	}
	for id, v := range values {
		if skip == nil || !skip(id) {
			params.set(id, v)
		}
	}
	return nil
}
