// Package keyio persists the protocol's per-party key material
// (DPF keys, oblivious-access keys, and the composite WM/quantile/FMI
// keys built on top of them) to disk between the offline dealer phase
// and the online evaluation phase, per spec.md §6's external interface
// for key loading.
//
// Grounded on original_source/RingOA/protocol/key_io.h's generic
// SaveKey/LoadKey template pair (serialize-to-buffer, write-to-file /
// read-from-file, deserialize-from-buffer); re-expressed with Go
// generics instead of C++ templates, and with CBOR (the teacher's own
// wire format — see pkg/netio/handshake.go) in place of the original's
// hand-rolled Serialize/Deserialize byte layout, since every key type
// in this module is already a plain Go struct CBOR can round-trip
// without a bespoke binary layout per type.
package keyio

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/maczac150/RingOA-dev-sub002/internal/errs"
)

// SaveKey serializes key to CBOR and writes it to filePath, mirroring
// KeyIo::SaveKey.
func SaveKey[K any](filePath string, key K) error {
	buf, err := cbor.Marshal(key)
	if err != nil {
		return fmt.Errorf("keyio: marshaling key: %v: %w", err, errs.ErrSerialization)
	}
	if err := os.WriteFile(filePath, buf, 0o600); err != nil {
		return fmt.Errorf("keyio: writing %s: %v: %w", filePath, err, errs.ErrConfiguration)
	}
	return nil
}

// LoadKey reads filePath and deserializes it into a K, mirroring
// KeyIo::LoadKey (including its "empty buffer is an error" check).
func LoadKey[K any](filePath string) (K, error) {
	var key K
	buf, err := os.ReadFile(filePath)
	if err != nil {
		return key, fmt.Errorf("keyio: reading %s: %v: %w", filePath, err, errs.ErrConfiguration)
	}
	if len(buf) == 0 {
		return key, fmt.Errorf("keyio: %s is empty: %w", filePath, errs.ErrSerialization)
	}
	if err := cbor.Unmarshal(buf, &key); err != nil {
		return key, fmt.Errorf("keyio: unmarshaling %s: %v: %w", filePath, err, errs.ErrSerialization)
	}
	return key, nil
}
