package bx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestLittleEndianReadWrite verifies that PutU32/U32 round-trip values
// using little-endian encoding.
func TestLittleEndianReadWrite(t *testing.T) {
	b := make([]byte, 4)
	var v uint32 = 0x01020304

	PutU32(b, v)
	// in LE, least-significant byte goes first
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, b)
	assert.Equal(t, v, U32(b))
}

// TestSignedAliases checks the I32 wrappers around U32, in particular
// the -1 chain sentinel used throughout the record codec.
func TestSignedAliases(t *testing.T) {
	b := make([]byte, 4)

	PutI32(b, -1)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, b)
	assert.Equal(t, int32(-1), I32(b))

	PutI32(b, -123456)
	assert.Equal(t, int32(-123456), I32(b))
}

// TestOffsetVariants verifies the *At variants that work with an offset
// into a larger buffer (common pattern when writing headers / slots).
func TestOffsetVariants(t *testing.T) {
	buf := make([]byte, 16)

	PutU32At(buf, 0, 0x01020304)
	PutI32At(buf, 4, -1)
	PutU32At(buf, 8, 42)

	assert.Equal(t, uint32(0x01020304), U32At(buf, 0))
	assert.Equal(t, int32(-1), I32At(buf, 4))
	assert.Equal(t, uint32(42), U32At(buf, 8))
}
