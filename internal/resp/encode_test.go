package resp

import "testing"

func TestEncodeShapes(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want string
	}{
		{"simple string", EncodeSimpleString("PONG"), "+PONG\r\n"},
		{"error", EncodeError("ERR unknown command"), "-ERR unknown command\r\n"},
		{"integer", EncodeInteger(42), ":42\r\n"},
		{"bulk string", EncodeBulkString([]byte("bar")), "$3\r\nbar\r\n"},
		{"null bulk", EncodeNullBulk(), "$-1\r\n"},
		{"array", EncodeArray([]byte("foo"), []byte("bar")), "*2\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"},
		{"raw bulk header", EncodeRawBulkHeader(10), "$10\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.got) != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
