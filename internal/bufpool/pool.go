// Package bufpool provides pooled byte slices to avoid hot-path allocation
// when framing large SET payloads and snapshot transfers. It uses a
// power-of-2 bucketing scheme (fixed-size sync.Pool buckets with a
// pointer-to-slice pattern) sized for RESP bulk strings rather than
// block-device I/O.
package bufpool

import "sync"

// Buffer size buckets. Every request up to size4k, however small, is served
// from the size4k bucket; only requests above size1m bypass the pool.
const (
	size4k  = 4 * 1024
	size16k = 16 * 1024
	size64k = 64 * 1024
	size1m  = 1024 * 1024
)

var globalPool = struct {
	pool4k  sync.Pool
	pool16k sync.Pool
	pool64k sync.Pool
	pool1m  sync.Pool
}{
	pool4k:  sync.Pool{New: func() any { b := make([]byte, size4k); return &b }},
	pool16k: sync.Pool{New: func() any { b := make([]byte, size16k); return &b }},
	pool64k: sync.Pool{New: func() any { b := make([]byte, size64k); return &b }},
	pool1m:  sync.Pool{New: func() any { b := make([]byte, size1m); return &b }},
}

// Get returns a pooled buffer of at least the requested size. Requests
// larger than the largest bucket fall back to a plain allocation that is
// never pooled. Callers must call Put when done.
func Get(size int) []byte {
	switch {
	case size <= size4k:
		return (*globalPool.pool4k.Get().(*[]byte))[:size]
	case size <= size16k:
		return (*globalPool.pool16k.Get().(*[]byte))[:size]
	case size <= size64k:
		return (*globalPool.pool64k.Get().(*[]byte))[:size]
	case size <= size1m:
		return (*globalPool.pool1m.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// Put returns a buffer to the pool it was drawn from. A buffer whose
// capacity doesn't match one of the bucket sizes (i.e. it came from the
// size1m fallback) is simply dropped for GC.
func Put(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case size4k:
		globalPool.pool4k.Put(&buf)
	case size16k:
		globalPool.pool16k.Put(&buf)
	case size64k:
		globalPool.pool64k.Put(&buf)
	case size1m:
		globalPool.pool1m.Put(&buf)
	}
}
