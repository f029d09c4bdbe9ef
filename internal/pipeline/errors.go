package pipeline

import "errors"

// Sentinel errors for the pipeline-level refusals named in spec §7. Each is
// wrapped with the offending path/checksum/record via fmt.Errorf("...: %w")
// before reaching the CLI boundary, so stderr output stays actionable.
var (
	// ErrAlreadyArchived: the source's checksum already has a live record
	// whose destination-side file still exists.
	ErrAlreadyArchived = errors.New("pipeline: file already archived")
	// ErrNameCollision: the destination file name is already claimed by a
	// live record with a different checksum.
	ErrNameCollision = errors.New("pipeline: file name collision with an existing record")
	// ErrUnmanagedConflict: a file already occupies the destination path
	// but no record claims it.
	ErrUnmanagedConflict = errors.New("pipeline: destination file exists but is not tracked by any record")
	// ErrNotInRecordbook: RestorePipeline could not identify the backup in
	// either recordbook.
	ErrNotInRecordbook = errors.New("pipeline: backup file not found in any recordbook")
	// ErrUserAborted: the user chose abort at a reconciliation or restore
	// prompt.
	ErrUserAborted = errors.New("pipeline: user aborted")
	// ErrNoRecordbook: neither home nor device has a recordbook and the
	// operation is not a first-ever store.
	ErrNoRecordbook = errors.New("pipeline: no recordbook present on either side")
	// ErrUnrecoverableCorruption: RestorePipeline's recovery attempt failed
	// digest verification after ECC decode.
	ErrUnrecoverableCorruption = errors.New("pipeline: unrecoverable corruption")
	// ErrECCOnlyDamage: the data file is intact but its ECC sidecar digest
	// no longer matches the record; the caller should advise a re-run.
	ErrECCOnlyDamage = errors.New("pipeline: only the ecc differs, rerun restore to repair it")
)
