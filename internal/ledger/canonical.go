package ledger

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Canonical encoding tags. No library in the retrieved corpus performs
// sorted-key/big-endian canonicalization (the teacher's json.Marshal is
// not byte-stable across map iteration and is unsuitable for hashing), so
// this is a small hand-rolled deterministic encoder: every value is
// prefixed with a type tag so decoding is unambiguous, map keys are
// sorted lexicographically, and every integer is written big-endian.
const (
	tagNil    byte = 0x00
	tagFalse  byte = 0x01
	tagTrue   byte = 0x02
	tagInt64  byte = 0x03
	tagUint64 byte = 0x04
	tagFloat  byte = 0x05
	tagString byte = 0x06
	tagBytes  byte = 0x07
	tagSlice  byte = 0x08
	tagMap    byte = 0x09
)

// CanonicalEncode deterministically encodes v. Supported value kinds:
// nil, bool, int64, uint64, float64, string, []byte, []interface{}, and
// map[string]interface{}. Two calls with equal inputs always produce
// identical output, which is the only property canonical encoding must
// guarantee — byte layout is otherwise an implementation detail.
func CanonicalEncode(v interface{}) []byte {
	var buf []byte
	return appendCanonical(buf, v)
}

func appendCanonical(buf []byte, v interface{}) []byte {
	switch x := v.(type) {
	case nil:
		return append(buf, tagNil)
	case bool:
		if x {
			return append(buf, tagTrue)
		}
		return append(buf, tagFalse)
	case int:
		return appendInt64(buf, int64(x))
	case int64:
		return appendInt64(buf, x)
	case uint64:
		return appendUint64(buf, x)
	case float64:
		return appendFloat(buf, x)
	case string:
		return appendString(buf, x)
	case []byte:
		return appendBytes(buf, x)
	case []interface{}:
		buf = append(buf, tagSlice)
		buf = appendUint32(buf, uint32(len(x)))
		for _, elem := range x {
			buf = appendCanonical(buf, elem)
		}
		return buf
	case map[string]interface{}:
		return appendMap(buf, x)
	default:
		panic(fmt.Sprintf("ledger: canonical encoding does not support type %T", v))
	}
}

func appendInt64(buf []byte, n int64) []byte {
	buf = append(buf, tagInt64)
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(n))
	return append(buf, tmp[:]...)
}

func appendUint64(buf []byte, n uint64) []byte {
	buf = append(buf, tagUint64)
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], n)
	return append(buf, tmp[:]...)
}

func appendFloat(buf []byte, f float64) []byte {
	buf = append(buf, tagFloat)
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], math.Float64bits(f))
	return append(buf, tmp[:]...)
}

func appendString(buf []byte, s string) []byte {
	buf = append(buf, tagString)
	buf = appendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendBytes(buf []byte, b []byte) []byte {
	buf = append(buf, tagBytes)
	buf = appendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

func appendUint32(buf []byte, n uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], n)
	return append(buf, tmp[:]...)
}

func appendMap(buf []byte, m map[string]interface{}) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf = append(buf, tagMap)
	buf = appendUint32(buf, uint32(len(keys)))
	for _, k := range keys {
		buf = appendString(buf, k)
		buf = appendCanonical(buf, m[k])
	}
	return buf
}
