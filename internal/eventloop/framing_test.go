package eventloop

import (
	"testing"

	"github.com/ehrlich-b/go-kvstore/internal/resp"
)

func TestExtractFramesMultipleInOneBuffer(t *testing.T) {
	buf := append(resp.EncodeArray([]byte("PING")), resp.EncodeArray([]byte("PING"))...)

	frames, consumed, err := extractFrames(buf)
	if err != nil {
		t.Fatalf("extractFrames returned error: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if consumed != len(buf) {
		t.Errorf("consumed = %d, want %d", consumed, len(buf))
	}
}

func TestExtractFramesLeavesIncompleteTail(t *testing.T) {
	whole := resp.EncodeArray([]byte("PING"))
	buf := append(append([]byte{}, whole...), whole[:len(whole)-2]...)

	frames, consumed, err := extractFrames(buf)
	if err != nil {
		t.Fatalf("extractFrames returned error: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if consumed != len(whole) {
		t.Errorf("consumed = %d, want %d (the incomplete tail must remain)", consumed, len(whole))
	}
}

func TestExtractFramesPropagatesProtocolError(t *testing.T) {
	_, _, err := extractFrames([]byte("not-resp\r\n"))
	if err == nil {
		t.Fatal("expected a protocol error")
	}
}

func TestConnConsumeReadShiftsRemainder(t *testing.T) {
	c := newConn(0, 1, connClient, "")
	c.appendRead([]byte("abcdef"))
	c.consumeRead(4)
	if string(c.readBuf) != "ef" {
		t.Errorf("readBuf = %q, want %q", c.readBuf, "ef")
	}
}
