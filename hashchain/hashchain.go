// Package hashchain links consecutive balance-affecting events with SHA3-512
// digests so that any gap or edit in a stream is detectable.
package hashchain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/xraph/assetledger/event"
)

// HashLength is the length of a hex-encoded SHA3-512 digest.
const HashLength = 128

// SeedHash is the previous hash of the first chained event of every stream.
var SeedHash = strings.Repeat("0", HashLength)

// ErrInvalidHash is matched by every InvalidHashError.
var ErrInvalidHash = errors.New("assetledger: invalid hash")

// InvalidHashError describes where a chain broke.
type InvalidHashError struct {
	Stream   event.Stream
	Sequence int64
	Expected string
	Actual   string
	Reason   string
}

func (e *InvalidHashError) Error() string {
	return fmt.Sprintf("assetledger: invalid hash at %s#%d: %s", e.Stream, e.Sequence, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidHash) hold.
func (e *InvalidHashError) Is(target error) bool {
	return target == ErrInvalidHash
}

// Compute returns hex(SHA3-512(prevHash ‖ payload)).
func Compute(prevHash string, payload []byte) string {
	h := sha3.New512()
	h.Write([]byte(prevHash))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Link sets PrevHash and Hash on e and returns the new chain head.
func Link(e *event.Event, prevHash string) string {
	e.PrevHash = prevHash
	e.Hash = Compute(prevHash, e.Payload)
	return e.Hash
}

// Validate checks that e continues the chain at expectedPrev and that its
// stored hash matches the recomputed digest of its payload.
func Validate(e *event.Event, expectedPrev string) error {
	if e.PrevHash != expectedPrev {
		return &InvalidHashError{
			Stream:   e.Stream(),
			Sequence: e.Sequence,
			Expected: expectedPrev,
			Actual:   e.PrevHash,
			Reason:   "previous hash mismatch",
		}
	}
	if want := Compute(e.PrevHash, e.Payload); e.Hash != want {
		return &InvalidHashError{
			Stream:   e.Stream(),
			Sequence: e.Sequence,
			Expected: want,
			Actual:   e.Hash,
			Reason:   "digest mismatch",
		}
	}
	return nil
}

// Verify walks a stream from the seed, validating every chained event.
// It returns the final chain head.
func Verify(events []*event.Event) (string, error) {
	head := SeedHash
	for _, e := range events {
		if !e.Chained() {
			continue
		}
		if err := Validate(e, head); err != nil {
			return head, err
		}
		head = e.Hash
	}
	return head, nil
}
