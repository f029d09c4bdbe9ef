// Package archiver gathers the archiver's process-wide constants into one
// immutable Config value, built once in main and threaded explicitly into
// every pipeline. There is no package-level mutable state and no hidden
// environment reads inside library code — DEBUG=1 is resolved exactly once,
// at the CLI boundary, into the fields below.
package archiver

// MetadataDir is the fixed directory name holding a recordbook, its
// checksum sidecar, and ECC sidecars, on both the home side and every
// archival device.
const MetadataDir = ".ltarchiver"

const (
	// DefaultChunkSize is the default chunk size new Records encode with.
	DefaultChunkSize = 1024
	// DefaultECCSize is the default parity size per chunk.
	DefaultECCSize = 16
)

// Config is the immutable set of parameters a pipeline run needs. Build one
// per invocation (or per test, backed by t.TempDir()) and pass it down
// explicitly; never read it from a global.
type Config struct {
	// HomeRoot is the directory holding the home recordbook.txt/checksum.txt.
	// DEBUG=1 selects "./test_data/.ltarchiver" here instead of the
	// platform config dir.
	HomeRoot string
	// NonInteractive suppresses the "press ENTER" style gates and wires a
	// UserConfirm implementation that always answers abort.
	NonInteractive bool
	// ChunkSize and ECCSize are the codec defaults for newly stored files.
	// Existing records carry their own encoding-time values and ignore
	// these once decoding.
	ChunkSize int
	ECCSize   int
}

// Default returns a Config with the library codec defaults and the given
// home root.
func Default(homeRoot string) Config {
	return Config{
		HomeRoot:  homeRoot,
		ChunkSize: DefaultChunkSize,
		ECCSize:   DefaultECCSize,
	}
}
