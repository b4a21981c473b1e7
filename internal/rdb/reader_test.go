package rdb

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func header() []byte { return []byte("REDIS0007") }

func TestDecodeMissingFileIsEmptyKeyspace(t *testing.T) {
	entries, err := Load(filepath.Join(t.TempDir(), "does-not-exist.rdb"))
	if err != nil {
		t.Fatalf("Load on missing file returned error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

func TestDecodeEmptySnapshot(t *testing.T) {
	buf := append(header(), opEOF)
	entries, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

func TestDecodeNoExpiryRecord(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(header())
	buf.WriteByte(opDBSelector)
	buf.WriteByte(0x00) // db index 0
	buf.WriteByte(opResizeDB)
	buf.WriteByte(0x01) // hash table size hint
	buf.WriteByte(0x00) // expires hash table size hint
	buf.WriteByte(0x00) // no-expiry record
	buf.WriteByte(0x03)
	buf.WriteString("foo")
	buf.WriteByte(0x03)
	buf.WriteString("bar")
	buf.WriteByte(opEOF)

	entries, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if string(entries[0].Key) != "foo" || string(entries[0].Value) != "bar" {
		t.Errorf("got %+v", entries[0])
	}
	if entries[0].ExpiryMs != 0 {
		t.Errorf("ExpiryMs = %d, want 0", entries[0].ExpiryMs)
	}
}

func TestDecodeMillisecondExpiryRecord(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(header())
	buf.WriteByte(opExpireMs)
	buf.Write([]byte{0xE8, 0x03, 0, 0, 0, 0, 0, 0}) // 1000 (LE u64)
	buf.WriteByte(0x00)
	buf.WriteByte(0x01)
	buf.WriteString("k")
	buf.WriteByte(0x01)
	buf.WriteString("v")
	buf.WriteByte(opEOF)

	entries, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ExpiryMs != 1000 {
		t.Fatalf("got %+v", entries)
	}
}

func TestDecodeSecondExpiryScaledToMilliseconds(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(header())
	buf.WriteByte(opExpireSec)
	buf.Write([]byte{0x01, 0, 0, 0}) // 1 second (LE u32)
	buf.WriteByte(0x00)
	buf.WriteByte(0x01)
	buf.WriteString("k")
	buf.WriteByte(0x01)
	buf.WriteString("v")
	buf.WriteByte(opEOF)

	entries, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ExpiryMs != 1000 {
		t.Fatalf("got %+v, want ExpiryMs=1000", entries)
	}
}

func TestDecodeLZFCompressedStringIsUnsupported(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(header())
	buf.WriteByte(0x00)
	buf.WriteByte(0xC3) // special form: LZF-compressed
	buf.WriteString("k")
	buf.WriteByte(opEOF)

	if _, err := Decode(buf.Bytes()); err == nil {
		t.Fatal("expected error decoding LZF-compressed string")
	}
}

func TestDecodeIntAsStringSpecialForms(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(header())
	buf.WriteByte(0x00)
	buf.WriteByte(0x01)
	buf.WriteString("k")
	buf.WriteByte(0xC0) // int8
	buf.WriteByte(0x7B) // 123
	buf.WriteByte(opEOF)

	entries, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(entries) != 1 || string(entries[0].Value) != "123" {
		t.Fatalf("got %+v, want value 123", entries)
	}
}

func TestLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.rdb")
	buf := append(header(), opEOF)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	entries, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

func TestEmptySnapshotBytes(t *testing.T) {
	got := EmptySnapshot()
	if len(got) != 10 {
		t.Fatalf("EmptySnapshot() is %d bytes, want 10", len(got))
	}
	if _, err := Decode(got); err != nil {
		t.Fatalf("EmptySnapshot() did not decode cleanly: %v", err)
	}
}
