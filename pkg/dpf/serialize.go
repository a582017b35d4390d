package dpf

import (
	"encoding/binary"
	"fmt"

	"github.com/maczac150/RingOA-dev-sub002/internal/errs"
	"github.com/maczac150/RingOA-dev-sub002/pkg/ring"
)

// CalculateSerializedSize returns the exact byte length Serialize will
// produce for a key with the given number of levels, per spec.md §6:
// 8-byte size prefix, 16-byte initial block, 1-byte initial control
// bit, 8-byte level count, per
// level (16-byte correction block + 1 byte packed control bits), 8-byte
// final correction scalar (here widened to the block's 16 bytes; see
// DESIGN.md).
func CalculateSerializedSize(levels int) uint64 {
	const sizePrefix = 8
	const initBlock = 16
	const initT = 1
	const levelCount = 8
	const perLevel = 16 + 1
	const finalCW = 16
	return sizePrefix + initBlock + initT + levelCount + uint64(levels)*perLevel + finalCW
}

// Serialize encodes key into its exact CalculateSerializedSize() bytes.
func (k Key) Serialize() ([]byte, error) {
	size := CalculateSerializedSize(len(k.CW))
	buf := make([]byte, size)
	off := 0

	binary.LittleEndian.PutUint64(buf[off:], size)
	off += 8

	initBytes := k.InitSeed.Bytes()
	copy(buf[off:], initBytes[:])
	off += 16

	buf[off] = k.InitT
	off++

	binary.LittleEndian.PutUint64(buf[off:], uint64(len(k.CW)))
	off += 8

	for _, cw := range k.CW {
		b := cw.SCW.Bytes()
		copy(buf[off:], b[:])
		off += 16
		buf[off] = (cw.TCWLeft & 1) | ((cw.TCWRight & 1) << 1)
		off++
	}

	finalBytes := k.FinalCW.Bytes()
	copy(buf[off:], finalBytes[:])
	off += 16

	if uint64(off) != size {
		return nil, fmt.Errorf("dpf: serialized %d bytes, want %d: %w", off, size, errs.ErrSerialization)
	}
	return buf, nil
}

// Deserialize reconstructs a Key from bytes produced by Serialize. The
// caller must supply the Params and OutputType out of band, matching
// spec.md §6's "the parameter object shape stored alongside" convention
// for composite keys.
func Deserialize(buf []byte, params Params, output OutputType) (Key, error) {
	if len(buf) < 8 {
		return Key{}, fmt.Errorf("dpf: buffer too short for size prefix: %w", errs.ErrSerialization)
	}
	size := binary.LittleEndian.Uint64(buf[0:8])
	if uint64(len(buf)) != size {
		return Key{}, fmt.Errorf("dpf: buffer length %d does not match declared size %d: %w", len(buf), size, errs.ErrSerialization)
	}

	off := 8
	if off+16 > len(buf) {
		return Key{}, fmt.Errorf("dpf: buffer too short for initial block: %w", errs.ErrSerialization)
	}
	initSeed := ring.BlockFromBytes(buf[off : off+16])
	off += 16

	initT := buf[off]
	off++

	if off+8 > len(buf) {
		return Key{}, fmt.Errorf("dpf: buffer too short for level count: %w", errs.ErrSerialization)
	}
	levels := binary.LittleEndian.Uint64(buf[off:])
	off += 8

	cw := make([]levelCW, levels)
	for i := range cw {
		if off+17 > len(buf) {
			return Key{}, fmt.Errorf("dpf: buffer too short for level %d: %w", i, errs.ErrSerialization)
		}
		scw := ring.BlockFromBytes(buf[off : off+16])
		off += 16
		packed := buf[off]
		off++
		cw[i] = levelCW{SCW: scw, TCWLeft: packed & 1, TCWRight: (packed >> 1) & 1}
	}

	if off+16 > len(buf) {
		return Key{}, fmt.Errorf("dpf: buffer too short for final correction: %w", errs.ErrSerialization)
	}
	finalCW := ring.BlockFromBytes(buf[off : off+16])
	off += 16

	if uint64(off) != size {
		return Key{}, fmt.Errorf("dpf: deserialized %d bytes, want %d: %w", off, size, errs.ErrSerialization)
	}

	return Key{Params: params, Output: output, InitSeed: initSeed, InitT: initT, CW: cw, FinalCW: finalCW}, nil
}
