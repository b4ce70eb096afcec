package counter

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

const (
	// TypeName is the host type name counters are stored under.
	TypeName = "DeGrad-TB"

	// EncodingVersion is the only snapshot layout currently defined.
	EncodingVersion = 0

	snapshotSize = 5 * 8
)

// Type identifies the counter value type to a host store. It is passed to the
// Controller explicitly so independent instances never share registration state.
type Type struct {
	Name    string
	Version int
}

// NewType returns the counter type handle at the current encoding version.
func NewType() Type {
	return Type{Name: TypeName, Version: EncodingVersion}
}

// Encode returns the stored entry for r.
func (t Type) Encode(r Record) Entry {
	return Entry{Type: t.Name, Version: t.Version, Data: EncodeSnapshot(r)}
}

// Decode returns the record held by e, or ErrWrongType if e belongs to another type.
func (t Type) Decode(e Entry) (Record, error) {
	if e.Type != t.Name {
		return Record{}, ErrWrongType
	}
	return DecodeSnapshot(e.Version, e.Data)
}

// EncodeSnapshot writes r in the fixed binary layout:
// created, decay rate, interval count, unit, value; 8 bytes each, little endian.
func EncodeSnapshot(r Record) []byte {
	buf := make([]byte, snapshotSize)
	binary.LittleEndian.PutUint64(buf[0:], uint64(r.Created))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(r.DecayRate))
	binary.LittleEndian.PutUint64(buf[16:], uint64(int64(r.Intervals)))
	binary.LittleEndian.PutUint64(buf[24:], uint64(int64(r.Unit)))
	binary.LittleEndian.PutUint64(buf[32:], math.Float64bits(r.Value))
	return buf
}

// DecodeSnapshot is the inverse of EncodeSnapshot. Bytes that cannot describe a
// valid record (bad length, interval count outside [1, MaxInt32], unknown unit)
// are rejected with ErrCorrupt.
func DecodeSnapshot(version int, data []byte) (Record, error) {
	if version != EncodingVersion {
		return Record{}, fmt.Errorf("decode %s: version %d: %w", TypeName, version, ErrEncodingVersion)
	}
	if len(data) != snapshotSize {
		return Record{}, fmt.Errorf("decode %s: %d bytes: %w", TypeName, len(data), ErrCorrupt)
	}
	intervals := int64(binary.LittleEndian.Uint64(data[16:]))
	if intervals < 1 || intervals > math.MaxInt32 {
		return Record{}, fmt.Errorf("decode %s: interval count %d: %w", TypeName, intervals, ErrCorrupt)
	}
	unit := Unit(int64(binary.LittleEndian.Uint64(data[24:])))
	if !unit.Valid() {
		return Record{}, fmt.Errorf("decode %s: unit %d: %w", TypeName, int64(unit), ErrCorrupt)
	}
	return Record{
		Created:   int64(binary.LittleEndian.Uint64(data[0:])),
		DecayRate: math.Float64frombits(binary.LittleEndian.Uint64(data[8:])),
		Intervals: int32(intervals),
		Unit:      unit,
		Value:     math.Float64frombits(binary.LittleEndian.Uint64(data[32:])),
	}, nil
}

// ReplayArgs returns the increment command that recreates r at key when run
// against an absent key. Created is not carried; the replayed record starts a
// fresh epoch.
func ReplayArgs(key string, r Record) []string {
	return incrArgs(key, r.Value, r.policy())
}

func incrArgs(key string, amount float64, p Policy) []string {
	return []string{
		CmdIncr, key,
		"AMOUNT", formatFloat(amount),
		"DEGRADE_RATE", formatFloat(p.DecayRate),
		"INTERVAL", p.Interval.String(),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
