// +build linux

package mmio

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpan(t *testing.T) {
	start, length := span(0xf1012100, 0x100, 4096)
	require.Equal(t, uint64(0xf1012000), start)
	require.Equal(t, 4096, length)

	start, length = span(0xf1012f80, 0x100, 4096)
	require.Equal(t, uint64(0xf1012000), start)
	require.Equal(t, 8192, length)

	start, length = span(0x1000, 0x1000, 4096)
	require.Equal(t, uint64(0x1000), start)
	require.Equal(t, 4096, length)
}

func TestWindowOnFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "mmio")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	name := filepath.Join(dir, "mem")
	pageSize := os.Getpagesize()
	require.NoError(t, ioutil.WriteFile(name, make([]byte, 2*pageSize), 0600))

	w, err := OpenFile(name, uint64(pageSize)+0x100, 0x20)
	require.NoError(t, err)
	w.Write32(0x14, 0x60)
	require.Equal(t, uint32(0x60), w.Read32(0x14))
	require.Panics(t, func() { w.Read32(0x20) })
	require.Panics(t, func() { w.Read32(0x2) })
	require.NoError(t, w.Close())

	data, err := ioutil.ReadFile(name)
	require.NoError(t, err)
	require.Equal(t, byte(0x60), data[pageSize+0x114])
}

func TestInvalidSize(t *testing.T) {
	_, err := OpenFile("/nonexistent", 0, 3)
	require.Error(t, err)
}
