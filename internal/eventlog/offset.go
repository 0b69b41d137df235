package eventlog

import (
	"fmt"
	"strconv"
)

// Offset is a per-path, dense, monotonically assigned position in a stream.
// On the wire and on disk it is always the 16-digit zero-padded decimal
// string produced by String(); internal arithmetic uses a uint64.
type Offset uint64

// NoOffset is the sentinel meaning "before any event on this path".
const NoOffset Offset = 0xFFFFFFFFFFFFFFFF // represented on the wire as "-1"

const offsetSentinel = "-1"

// String renders the offset in its canonical 16-digit zero-padded form,
// or "-1" for NoOffset.
func (o Offset) String() string {
	if o == NoOffset {
		return offsetSentinel
	}
	return fmt.Sprintf("%016d", uint64(o))
}

// Next returns the offset that follows o. Calling Next on NoOffset yields 0,
// i.e. the first offset ever assigned on a path.
func (o Offset) Next() Offset {
	if o == NoOffset {
		return 0
	}
	return o + 1
}

// Less reports whether o precedes other in offset order.
func (o Offset) Less(other Offset) bool {
	return o.rank() < other.rank()
}

// LessOrEqual reports whether o precedes or equals other.
func (o Offset) LessOrEqual(other Offset) bool {
	return o.rank() <= other.rank()
}

// rank maps NoOffset to -1 conceptually so it sorts before offset 0.
func (o Offset) rank() int64 {
	if o == NoOffset {
		return -1
	}
	return int64(o)
}

// ParseOffset parses the wire/query representation of an offset. An empty
// string and the literal "-1" both parse to NoOffset ("start from the
// beginning"), matching the `from` default described in the spec.
func ParseOffset(s string) (Offset, error) {
	if s == "" || s == offsetSentinel {
		return NoOffset, nil
	}
	if len(s) != 16 {
		return 0, fmt.Errorf("invalid offset %q: must be 16 digits or %q", s, offsetSentinel)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q: %w", s, err)
	}
	return Offset(v), nil
}
