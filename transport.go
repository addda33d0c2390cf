package chunkeval

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Serializer converts between Go values and bytes for the interpreter wire
// protocol. The default implementation uses MessagePack.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// msgpackSerializer is the default Serializer.
type msgpackSerializer struct{}

func (msgpackSerializer) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (msgpackSerializer) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// frameBufSize matches the scratch buffer size on the interpreter side.
const frameBufSize = 8192

// maxFrameSize bounds a single frame; anything larger is a protocol error.
const maxFrameSize = 64 << 20

// frameTransport sends and receives length-prefixed binary frames over a pipe
// pair. Writes are serialized internally; Receive must be called from a single
// reader goroutine.
type frameTransport struct {
	reader io.Reader
	writer io.Writer

	wmu sync.Mutex

	// scratch recycles payload buffers for small frames
	scratch sync.Pool
}

func newFrameTransport(reader io.Reader, writer io.Writer) *frameTransport {
	return &frameTransport{
		reader: reader,
		writer: writer,
		scratch: sync.Pool{
			New: func() any { return make([]byte, frameBufSize) },
		},
	}
}

// Send writes one frame: a 4-byte big-endian length followed by the payload.
func (t *frameTransport) Send(data []byte) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(data)))
	if _, err := t.writer.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := t.writer.Write(data); err != nil {
		return err
	}
	if flusher, ok := t.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Receive reads one complete frame and returns a payload owned by the caller.
func (t *frameTransport) Receive() ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(t.reader, hdr[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(hdr[:])
	if length > maxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", length)
	}

	if length <= frameBufSize {
		buf := t.scratch.Get().([]byte)[:length]
		if _, err := io.ReadFull(t.reader, buf); err != nil {
			t.scratch.Put(buf[:frameBufSize])
			return nil, err
		}
		out := make([]byte, length)
		copy(out, buf)
		t.scratch.Put(buf[:frameBufSize])
		return out, nil
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(t.reader, data); err != nil {
		return nil, err
	}
	return data, nil
}
