package eventloop

import "github.com/ehrlich-b/go-kvstore/internal/resp"

// decodedFrame pairs a parsed request with the exact raw bytes the framer
// consumed for it, since propagation and replica offset accounting both
// need the original byte length, not a re-encoding.
type decodedFrame struct {
	Frame resp.Frame
	Raw   []byte
}

// extractFrames repeatedly decodes whole frames from the head of buf,
// stopping at the first incomplete frame or decode error. It never mutates
// buf; the caller consumes `consumed` bytes from its own buffer afterward.
func extractFrames(buf []byte) (frames []decodedFrame, consumed int, err error) {
	off := 0
	for {
		f, n, decErr := resp.Decode(buf[off:])
		if decErr == resp.ErrIncomplete {
			break
		}
		if decErr != nil {
			return frames, off, decErr
		}
		raw := make([]byte, n)
		copy(raw, buf[off:off+n])
		frames = append(frames, decodedFrame{Frame: f, Raw: raw})
		off += n
	}
	return frames, off, nil
}
