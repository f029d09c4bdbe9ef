// Package record defines the archiver's catalog entry — one archived file
// — and its line-oriented text serialization.
package record

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record describes one archived file: where it came from, which device
// holds it, and the parameters needed to decode its ECC sidecar.
type Record struct {
	Version           int
	Deleted           bool
	FileName          string
	Source            string
	DestinationUUID   string
	Timestamp         time.Time
	ChunkSize         int
	ECCSize           int
	ChecksumAlgorithm string
	Checksum          string
	ECCChecksum       string
}

// timeLayout is the ISO-8601 local-time layout the recordbook text format
// uses for the Timestamp field.
const timeLayout = "2006-01-02T15:04:05.999999"

// MalformedError reports a recordbook parse failure at a specific line,
// per spec's `MalformedRecordbook(line_number, reason)`.
type MalformedError struct {
	Line   int
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed recordbook at line %d: %s", e.Line, e.Reason)
}

// fieldOrder is the fixed key order Serialize writes, and the set of keys
// ParseAll accepts — any other key is a parse failure.
var fieldOrder = []string{
	"Version", "Deleted", "File-Name", "Source", "Destination",
	"Bytes-per-chunk", "EC-bytes-per-chunk", "Timestamp",
	"Checksum-Algorithm", "Checksum", "ECC-Checksum",
}

// Serialize renders r as one "Item" block in the recordbook's fixed key
// order, LF-terminated, ready to be concatenated with no separator.
func (r Record) Serialize() string {
	var b strings.Builder
	b.WriteString("Item\n")
	b.WriteString(fmt.Sprintf("Version: %d\n", r.Version))
	b.WriteString(fmt.Sprintf("Deleted: %t\n", r.Deleted))
	b.WriteString(fmt.Sprintf("File-Name: %s\n", r.FileName))
	b.WriteString(fmt.Sprintf("Source: %s\n", r.Source))
	b.WriteString(fmt.Sprintf("Destination: %s\n", r.DestinationUUID))
	b.WriteString(fmt.Sprintf("Bytes-per-chunk: %d\n", r.ChunkSize))
	b.WriteString(fmt.Sprintf("EC-bytes-per-chunk: %d\n", r.ECCSize))
	b.WriteString(fmt.Sprintf("Timestamp: %s\n", r.Timestamp.Format(timeLayout)))
	b.WriteString(fmt.Sprintf("Checksum-Algorithm: %s\n", r.ChecksumAlgorithm))
	b.WriteString(fmt.Sprintf("Checksum: %s\n", r.Checksum))
	b.WriteString(fmt.Sprintf("ECC-Checksum: %s\n", r.ECCChecksum))
	return b.String()
}

// ParseAll splits text (the full contents of a recordbook file) into
// Records. Blank lines are tolerated; any unrecognized, duplicate or
// missing key, content before the first "Item" header, or malformed value
// is a MalformedError naming the 1-based line number.
func ParseAll(text string) ([]Record, error) {
	lines := strings.Split(text, "\n")

	var records []Record
	var cur map[string]string
	var itemStartLine int

	flush := func(endLine int) error {
		if cur == nil {
			return nil
		}
		rec, err := fromFields(cur, itemStartLine)
		if err != nil {
			return err
		}
		records = append(records, rec)
		cur = nil
		return nil
	}

	for i, rawLine := range lines {
		lineNo := i + 1
		line := strings.TrimRight(rawLine, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed == "Item" {
			if err := flush(lineNo); err != nil {
				return nil, err
			}
			cur = make(map[string]string)
			itemStartLine = lineNo
			continue
		}
		if cur == nil {
			return nil, &MalformedError{Line: lineNo, Reason: "content outside of an Item block"}
		}
		key, value, ok := strings.Cut(trimmed, ": ")
		if !ok {
			return nil, &MalformedError{Line: lineNo, Reason: fmt.Sprintf("unparseable line %q", trimmed)}
		}
		if !isKnownField(key) {
			return nil, &MalformedError{Line: lineNo, Reason: fmt.Sprintf("unknown field %q", key)}
		}
		if _, dup := cur[key]; dup {
			return nil, &MalformedError{Line: lineNo, Reason: fmt.Sprintf("duplicate field %q", key)}
		}
		cur[key] = value
	}
	if err := flush(len(lines) + 1); err != nil {
		return nil, err
	}
	return records, nil
}

func isKnownField(key string) bool {
	for _, k := range fieldOrder {
		if k == key {
			return true
		}
	}
	return false
}

func fromFields(fields map[string]string, itemLine int) (Record, error) {
	get := func(key string) (string, error) {
		v, ok := fields[key]
		if !ok {
			return "", &MalformedError{Line: itemLine, Reason: fmt.Sprintf("missing field %q", key)}
		}
		return v, nil
	}

	var r Record
	var err error

	versionStr, err := get("Version")
	if err != nil {
		return Record{}, err
	}
	r.Version, err = strconv.Atoi(versionStr)
	if err != nil {
		return Record{}, &MalformedError{Line: itemLine, Reason: fmt.Sprintf("invalid Version %q: %v", versionStr, err)}
	}

	deletedStr, err := get("Deleted")
	if err != nil {
		return Record{}, err
	}
	r.Deleted, err = strconv.ParseBool(deletedStr)
	if err != nil {
		return Record{}, &MalformedError{Line: itemLine, Reason: fmt.Sprintf("invalid Deleted %q: %v", deletedStr, err)}
	}

	if r.FileName, err = get("File-Name"); err != nil {
		return Record{}, err
	}
	if r.Source, err = get("Source"); err != nil {
		return Record{}, err
	}
	if r.DestinationUUID, err = get("Destination"); err != nil {
		return Record{}, err
	}

	chunkStr, err := get("Bytes-per-chunk")
	if err != nil {
		return Record{}, err
	}
	r.ChunkSize, err = strconv.Atoi(chunkStr)
	if err != nil {
		return Record{}, &MalformedError{Line: itemLine, Reason: fmt.Sprintf("invalid Bytes-per-chunk %q: %v", chunkStr, err)}
	}

	eccStr, err := get("EC-bytes-per-chunk")
	if err != nil {
		return Record{}, err
	}
	r.ECCSize, err = strconv.Atoi(eccStr)
	if err != nil {
		return Record{}, &MalformedError{Line: itemLine, Reason: fmt.Sprintf("invalid EC-bytes-per-chunk %q: %v", eccStr, err)}
	}

	tsStr, err := get("Timestamp")
	if err != nil {
		return Record{}, err
	}
	r.Timestamp, err = time.Parse(timeLayout, tsStr)
	if err != nil {
		return Record{}, &MalformedError{Line: itemLine, Reason: fmt.Sprintf("invalid Timestamp %q: %v", tsStr, err)}
	}

	if r.ChecksumAlgorithm, err = get("Checksum-Algorithm"); err != nil {
		return Record{}, err
	}
	if r.Checksum, err = get("Checksum"); err != nil {
		return Record{}, err
	}
	if r.ECCChecksum, err = get("ECC-Checksum"); err != nil {
		return Record{}, err
	}

	return r, nil
}

// Identity is the tuple Recordbook.Merge unions by.
type Identity struct {
	FileName        string
	DestinationUUID string
	Checksum        string
	Timestamp       time.Time
}

// Identity returns r's merge/dedup identity.
func (r Record) Identity() Identity {
	return Identity{
		FileName:        r.FileName,
		DestinationUUID: r.DestinationUUID,
		Checksum:        r.Checksum,
		Timestamp:       r.Timestamp,
	}
}
