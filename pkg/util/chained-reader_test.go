package util

import (
	"bytes"
	"io"
	"testing"
)

func newChain(t *testing.T, parts ...string) *ChainedReadSeeker {
	t.Helper()
	streams := make([]io.ReadSeeker, 0, len(parts))
	for _, p := range parts {
		streams = append(streams, bytes.NewReader([]byte(p)))
	}
	c, err := NewChainedReadSeeker(streams...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestChainedReadSeeker(t *testing.T) {
	c := newChain(t, "abc", "", "defg", "h")
	data, err := io.ReadAll(c)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "abcdefgh" {
		t.Fatalf("read %q", data)
	}
	if _, err := c.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestChainedReadSeekerSeekStart(t *testing.T) {
	c := newChain(t, "abc", "defg")
	if _, err := io.ReadAll(c); err != nil {
		t.Fatal(err)
	}

	pos, err := c.Seek(4, io.SeekStart)
	if err != nil || pos != 4 {
		t.Fatalf("pos %d err %v", pos, err)
	}
	data, _ := io.ReadAll(c)
	if string(data) != "efg" {
		t.Fatalf("read %q", data)
	}
}

func TestChainedReadSeekerSeekCurrent(t *testing.T) {
	c := newChain(t, "abc", "defg")
	buf := make([]byte, 2)
	io.ReadFull(c, buf)

	// forward across the stream boundary
	pos, err := c.Seek(2, io.SeekCurrent)
	if err != nil || pos != 4 {
		t.Fatalf("pos %d err %v", pos, err)
	}
	data, _ := io.ReadAll(c)
	if string(data) != "efg" {
		t.Fatalf("read %q", data)
	}

	if _, err := c.Seek(-1, io.SeekCurrent); err != ErrNegativeSeek {
		t.Fatalf("expected ErrNegativeSeek, got %v", err)
	}
}

func TestChainedReadSeekerSeekEnd(t *testing.T) {
	c := newChain(t, "abc", "defg")
	pos, err := c.Seek(0, io.SeekEnd)
	if err != nil || pos != 7 {
		t.Fatalf("pos %d err %v", pos, err)
	}

	// the total size read via SeekEnd is how the builder measures streams
	if _, err := c.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(c)
	if string(data) != "abcdefg" {
		t.Fatalf("read %q", data)
	}
}

func TestChainedReadSeekerTell(t *testing.T) {
	c := newChain(t, "abc", "defg")
	buf := make([]byte, 5)
	io.ReadFull(c, buf)
	pos, err := c.Tell()
	if err != nil || pos != 5 {
		t.Fatalf("pos %d err %v", pos, err)
	}
}
