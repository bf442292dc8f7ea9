package main

import (
	"io"
	"os"
	"path/filepath"
)

// writeFileAtomic writes through a temp file in the destination folder and
// renames it over path, so a crashed step never leaves half a table behind.
func writeFileAtomic(
	path string,
	encode func(io.Writer) error,
) (
	error,
) {

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
