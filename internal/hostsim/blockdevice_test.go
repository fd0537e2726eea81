package hostsim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/keystonefw/badapple/pkg/types"
)

func writeTempImage(t *testing.T, blocks int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "image.bin")

	data := make([]byte, blocks*types.BlockSize)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestReadBlockRoundTrip(t *testing.T) {
	path := writeTempImage(t, 4)
	dev, err := OpenFileBlockDevice(path)
	if err != nil {
		t.Fatalf("OpenFileBlockDevice: %v", err)
	}
	defer dev.Close()

	buf := make([]byte, types.BlockSize)
	if err := dev.ReadBlock(2, buf); err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if buf[0] != byte(2*types.BlockSize) {
		t.Errorf("buf[0] = %d, want %d", buf[0], byte(2*types.BlockSize))
	}
}

func TestReadBlocksMultiblock(t *testing.T) {
	path := writeTempImage(t, 4)
	dev, err := OpenFileBlockDevice(path)
	if err != nil {
		t.Fatalf("OpenFileBlockDevice: %v", err)
	}
	defer dev.Close()

	buf := make([]byte, 2*types.BlockSize)
	if err := dev.ReadBlocks(1, 2, buf); err != nil {
		t.Fatalf("ReadBlocks: %v", err)
	}
	if buf[0] != byte(types.BlockSize) {
		t.Errorf("buf[0] = %d, want %d", buf[0], byte(types.BlockSize))
	}
}

func TestReadBlockPastEndFails(t *testing.T) {
	path := writeTempImage(t, 1)
	dev, err := OpenFileBlockDevice(path)
	if err != nil {
		t.Fatalf("OpenFileBlockDevice: %v", err)
	}
	defer dev.Close()

	buf := make([]byte, types.BlockSize)
	if err := dev.ReadBlock(5, buf); err == nil {
		t.Fatal("expected error reading past end of image")
	}
}

func TestReadBlockRejectsWrongSize(t *testing.T) {
	path := writeTempImage(t, 1)
	dev, err := OpenFileBlockDevice(path)
	if err != nil {
		t.Fatalf("OpenFileBlockDevice: %v", err)
	}
	defer dev.Close()

	buf := make([]byte, 10)
	if err := dev.ReadBlock(0, buf); err == nil {
		t.Fatal("expected error for wrong-sized buffer")
	}
}

func TestDACToPCM16Range(t *testing.T) {
	if got := dacToPCM16(0x800); got != 0 {
		t.Errorf("dacToPCM16(0x800) = %d, want 0", got)
	}
	if got := dacToPCM16(0); got != -32768 {
		t.Errorf("dacToPCM16(0) = %d, want -32768", got)
	}
	if got := dacToPCM16(4095); got <= 0 {
		t.Errorf("dacToPCM16(4095) = %d, want positive", got)
	}
}
