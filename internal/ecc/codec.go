package ecc

import (
	"crypto/md5" //nolint:gosec // G501: integrity checksum, matches internal/digest's choice
	"encoding/hex"
	"fmt"
	"io"
)

// syncer is satisfied by *os.File; Encode fsyncs the sidecar through it when
// the writer supports it, per the durability contract of the sidecar format.
type syncer interface {
	Sync() error
}

func validateParams(chunkSize, eccSize int) error {
	if chunkSize < 1 {
		return fmt.Errorf("ecc: chunk_size must be >= 1, got %d", chunkSize)
	}
	if eccSize < 1 {
		return fmt.Errorf("ecc: ecc_size must be >= 1, got %d", eccSize)
	}
	if chunkSize+eccSize > 255 {
		return fmt.Errorf("ecc: chunk_size+ecc_size must be <= 255, got %d", chunkSize+eccSize)
	}
	return nil
}

// Encode reads src in chunk_size-byte chunks (the final chunk may be short),
// copying each chunk verbatim to data and writing its ecc_size-byte parity
// block to eccSidecar. Both digests are computed in the same streaming pass.
// The sidecar is fsynced before Encode returns if eccSidecar supports it.
func Encode(src io.Reader, data, eccSidecar io.Writer, chunkSize, eccSize int) (dataDigest, eccDigest string, err error) {
	if err := validateParams(chunkSize, eccSize); err != nil {
		return "", "", err
	}

	dataHash := md5.New() //nolint:gosec // G401: see internal/digest
	eccHash := md5.New()  //nolint:gosec // G401: see internal/digest

	buf := make([]byte, chunkSize)
	padded := make([]byte, chunkSize)

	for {
		n, readErr := io.ReadFull(src, buf)
		if n > 0 {
			chunk := buf[:n]
			if _, werr := data.Write(chunk); werr != nil {
				return "", "", fmt.Errorf("ecc: write data chunk: %w", werr)
			}
			dataHash.Write(chunk)

			for i := range padded {
				padded[i] = 0
			}
			copy(padded, chunk)
			parity := encodeSymbols(padded, eccSize)

			if _, werr := eccSidecar.Write(parity); werr != nil {
				return "", "", fmt.Errorf("ecc: write sidecar: %w", werr)
			}
			eccHash.Write(parity)
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return "", "", fmt.Errorf("ecc: read source: %w", readErr)
		}
	}

	if s, ok := eccSidecar.(syncer); ok {
		if err := s.Sync(); err != nil {
			return "", "", fmt.Errorf("ecc: fsync sidecar: %w", err)
		}
	}

	return hex.EncodeToString(dataHash.Sum(nil)), hex.EncodeToString(eccHash.Sum(nil)), nil
}

// Decode reads paired chunk_size-byte data chunks from backup and
// ecc_size-byte parity blocks from eccSidecar, corrects each chunk via the
// RS codeword, and writes the recovered bytes (original length, no padding)
// to dest. Returns ErrTooManyErrors if any chunk has more byte errors than
// ecc_size/2 can locate; the caller is responsible for removing any partial
// destination it created, since Decode only ever writes through dest and
// does not know its backing path.
func Decode(backup, eccSidecar io.Reader, dest io.Writer, chunkSize, eccSize int) error {
	if err := validateParams(chunkSize, eccSize); err != nil {
		return err
	}

	dataBuf := make([]byte, chunkSize)
	eccBuf := make([]byte, eccSize)
	codeword := make([]byte, chunkSize+eccSize)

	for {
		n, readErr := io.ReadFull(backup, dataBuf)
		if n == 0 && readErr == io.EOF {
			break
		}
		if readErr != nil && readErr != io.ErrUnexpectedEOF {
			return fmt.Errorf("ecc: read data: %w", readErr)
		}

		if _, err := io.ReadFull(eccSidecar, eccBuf); err != nil {
			return fmt.Errorf("ecc: read sidecar: %w", err)
		}

		for i := range codeword {
			codeword[i] = 0
		}
		copy(codeword, dataBuf[:n])
		copy(codeword[chunkSize:], eccBuf)

		syn := syndromes(codeword, eccSize)
		if hasNonZero(syn) {
			errLoc, err := berlekampMassey(syn, eccSize)
			if err != nil {
				return err
			}
			positions, err := findErrorPositions(errLoc, len(codeword))
			if err != nil {
				return err
			}
			if err := correctErrors(codeword, syn, positions); err != nil {
				return err
			}
		}

		if _, err := dest.Write(codeword[:n]); err != nil {
			return fmt.Errorf("ecc: write destination: %w", err)
		}

		if readErr == io.ErrUnexpectedEOF {
			break
		}
	}
	return nil
}

func hasNonZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return true
		}
	}
	return false
}
