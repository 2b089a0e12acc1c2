package ledger

import (
	"fmt"
	"time"
)

// Outcome classifies how a file left the pipeline.
type Outcome int

const (
	// Valid files were checksummed, compressed and archived.
	Valid Outcome = iota
	// Invalid files failed the size or extension policy.
	Invalid
	// Unresolved files hit an I/O error partway through processing.
	Unresolved
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	case Unresolved:
		return "unresolved"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ParseOutcome converts the String form back into an Outcome.
func ParseOutcome(value string) (Outcome, bool) {
	switch value {
	case "valid":
		return Valid, true
	case "invalid":
		return Invalid, true
	case "unresolved":
		return Unresolved, true
	default:
		return 0, false
	}
}

// Entry is one terminal outcome.
type Entry struct {
	Time     time.Time
	BatchID  string
	File     string
	Outcome  Outcome
	Reason   string
	Checksum string
	Size     int64
}

// Line renders the entry the way it appears in status output and the history log.
func (e Entry) Line() string {
	switch e.Outcome {
	case Valid:
		return fmt.Sprintf("%s: valid file", e.File)
	case Invalid:
		return fmt.Sprintf("%s: invalid file, reason: %s", e.File, e.Reason)
	default:
		return fmt.Sprintf("%s: unresolved file, error: %s", e.File, e.Reason)
	}
}
