// Package reconcile decides how to bring a home and a device recordbook
// into agreement before any pipeline runs.
//
// Plan is a pure function: given each side's on-disk validity (and, when
// both sides are Valid, their file digests), it returns an Action describing
// what to do. It never touches the filesystem and never prompts — that
// isolation is what makes the decision table directly testable.
package reconcile

import "github.com/marceloslacerda/ltarchiver/internal/recordbook"

// Kind identifies what an Action asks the caller to do.
type Kind int

const (
	NoOp Kind = iota
	CopyHomeToDevice
	CopyDeviceToHome
	Prompt
	Fail
)

func (k Kind) String() string {
	switch k {
	case NoOp:
		return "NoOp"
	case CopyHomeToDevice:
		return "CopyHomeToDevice"
	case CopyDeviceToHome:
		return "CopyDeviceToHome"
	case Prompt:
		return "Prompt"
	case Fail:
		return "Fail"
	default:
		return "Unknown"
	}
}

// Variant names the specific user-facing prompt a Prompt action requires.
type Variant string

const (
	// DiffConflict: both sides are valid but differ; the user picks a
	// winning side.
	DiffConflict Variant = "diff-conflict"
	// RecomputeDeviceChecksum: home is valid, device has no checksum
	// sidecar; user confirms recomputing it from the device file as-is.
	RecomputeDeviceChecksum Variant = "recompute-device-checksum"
	// OverwriteDeviceWithHome: home is valid, device's checksum doesn't
	// match its file; user confirms overwriting device with home.
	OverwriteDeviceWithHome Variant = "overwrite-device-with-home"
	// RecomputeHomeChecksum is the symmetric case of
	// RecomputeDeviceChecksum with home and device swapped.
	RecomputeHomeChecksum Variant = "recompute-home-checksum"
	// OverwriteHomeWithDevice is the symmetric case of
	// OverwriteDeviceWithHome with home and device swapped.
	OverwriteHomeWithDevice Variant = "overwrite-home-with-device"
	// BothInvalidMenu: neither side is cleanly valid; user is given a
	// menu (show-home / show-device / overwrite-both-checksums / abort).
	BothInvalidMenu Variant = "both-invalid-menu"
)

// FailReason names why a Fail action is unrecoverable without user setup.
type FailReason string

// NoRecordbook is returned when neither side has a recordbook and the
// caller did not pass FirstTimeOK.
const NoRecordbook FailReason = "NoRecordbook"

// Action is the tagged decision Plan returns. Exactly one of its payload
// fields is meaningful, selected by Kind.
type Action struct {
	Kind       Kind
	Variant    Variant
	FailReason FailReason
}

// Input bundles both sides' observed state. Digests are only consulted
// when both sides are recordbook.Valid; leave them empty otherwise.
type Input struct {
	Home         recordbook.Status
	Device       recordbook.Status
	HomeDigest   string
	DeviceDigest string
	// FirstTimeOK permits StorePipeline's first-ever store to proceed with
	// empty in-memory books when neither side has a recordbook yet.
	FirstTimeOK bool
}

// Plan implements the reconciliation decision table. Executing the
// returned Action is the caller's responsibility; Plan performs no I/O.
func Plan(in Input) Action {
	switch {
	case in.Home == recordbook.Valid && in.Device == recordbook.Valid:
		if in.HomeDigest == in.DeviceDigest {
			return Action{Kind: NoOp}
		}
		return Action{Kind: Prompt, Variant: DiffConflict}

	case in.Home == recordbook.Valid && in.Device == recordbook.DoesNotExist:
		return Action{Kind: CopyHomeToDevice}

	case in.Home == recordbook.Valid && in.Device == recordbook.NoChecksumFile:
		return Action{Kind: Prompt, Variant: RecomputeDeviceChecksum}

	case in.Home == recordbook.Valid && in.Device == recordbook.ChecksumMismatch:
		return Action{Kind: Prompt, Variant: OverwriteDeviceWithHome}

	case in.Home == recordbook.DoesNotExist && in.Device == recordbook.Valid:
		return Action{Kind: CopyDeviceToHome}

	case in.Home == recordbook.DoesNotExist && in.Device == recordbook.DoesNotExist:
		if in.FirstTimeOK {
			return Action{Kind: NoOp}
		}
		return Action{Kind: Fail, FailReason: NoRecordbook}

	case in.Home == recordbook.NoChecksumFile && in.Device == recordbook.Valid:
		return Action{Kind: Prompt, Variant: RecomputeHomeChecksum}

	case in.Home == recordbook.ChecksumMismatch && in.Device == recordbook.Valid:
		return Action{Kind: Prompt, Variant: OverwriteHomeWithDevice}

	default:
		// Neither side is cleanly Valid (and neither trivial case above
		// matched): no silent recovery.
		return Action{Kind: Prompt, Variant: BothInvalidMenu}
	}
}
