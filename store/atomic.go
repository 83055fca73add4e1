package store

import (
	"os"

	"github.com/google/renameio"
)

// writeAtomicOS writes data to path via renameio, which additionally
// fsyncs the temp file and its parent directory before the rename so
// the write survives a crash — the guarantee distri's install path
// relies on renameio for when laying down immutable package files.
func writeAtomicOS(path string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(path, data, perm)
}
