package clap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// InputStream is the raw read stream passed to state loading. Read returns
// the number of bytes read, 0 at end of stream and -1 on error.
type InputStream struct {
	Read func(p []byte) int64
}

// OutputStream is the raw write stream passed to state saving. Write returns
// the number of bytes written or -1 on error.
type OutputStream struct {
	Write func(p []byte) int64
}

var errStream = errors.New("stream error")

// NewInputStream serves data as a raw input stream.
func NewInputStream(data []byte) *InputStream {
	r := bytes.NewReader(data)
	return &InputStream{
		Read: func(p []byte) int64 {
			n, err := r.Read(p)
			if err == io.EOF {
				return 0
			}
			if err != nil {
				return -1
			}
			return int64(n)
		},
	}
}

// NewOutputStream forwards a raw output stream to w.
func NewOutputStream(w io.Writer) *OutputStream {
	return &OutputStream{
		Write: func(p []byte) int64 {
			n, err := w.Write(p)
			if err != nil {
				return -1
			}
			return int64(n)
		},
	}
}

// StreamReader adapts a raw input stream for plugin-side decoding.
type StreamReader struct {
	s *InputStream
}

// NewStreamReader wraps s. It returns nil for a nil stream.
func NewStreamReader(s *InputStream) *StreamReader {
	if s == nil || s.Read == nil {
		return nil
	}
	return &StreamReader{s: s}
}

// Read implements io.Reader.
func (r *StreamReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := r.s.Read(p)
	switch {
	case n < 0:
		return 0, errStream
	case n == 0:
		return 0, io.EOF
	}
	return int(n), nil
}

// ReadUint32 reads a little-endian uint32.
func (r *StreamReader) ReadUint32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadFloat64 reads a little-endian float64.
func (r *StreamReader) ReadFloat64() (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:])), nil
}

// ReadAll reads until end of stream.
func (r *StreamReader) ReadAll() ([]byte, error) {
	return io.ReadAll(r)
}

// StreamWriter adapts a raw output stream for plugin-side encoding.
type StreamWriter struct {
	s *OutputStream
}

// NewStreamWriter wraps s. It returns nil for a nil stream.
func NewStreamWriter(s *OutputStream) *StreamWriter {
	if s == nil || s.Write == nil {
		return nil
	}
	return &StreamWriter{s: s}
}

// Write implements io.Writer. Short writes are retried until p is consumed.
func (w *StreamWriter) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n := w.s.Write(p[written:])
		if n <= 0 {
			return written, errStream
		}
		written += int(n)
	}
	return written, nil
}

// WriteUint32 writes a little-endian uint32.
func (w *StreamWriter) WriteUint32(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteFloat64 writes a little-endian float64.
func (w *StreamWriter) WriteFloat64(v float64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	_, err := w.Write(buf[:])
	return err
}
