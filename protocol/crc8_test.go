package protocol

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksum_KnownVectors(t *testing.T) {
	assert.Equal(t, byte(0x00), Checksum())
	assert.Equal(t, byte(0xF4), Checksum([]byte("123456789")...), "CRC-8 check value")
	assert.Equal(t, byte(0x0E), Checksum(byte(CmdStatusAndPosition)))
	assert.Equal(t, byte(0x31), Checksum(byte(CmdReadError)))
	assert.Equal(t, byte(0xB0), Checksum(byte(CmdRotateAbsolute), 0xB4, 0x00))
}

func TestChecksum_TableMatchesBitwise(t *testing.T) {
	for crc := range 256 {
		for b := range 256 {
			want := crcUpdateBitwise(byte(crc), byte(b))
			got := crcTable[byte(crc)^byte(b)]
			if want != got {
				t.Fatalf("crc=0x%02X b=0x%02X: table=0x%02X, bitwise=0x%02X", crc, b, got, want)
			}
		}
	}
}

func TestChecksumReverse_DiffersFromForward(t *testing.T) {
	tests := []struct {
		data    []byte
		forward byte
		reverse byte
	}{
		{[]byte{0x80, 0x1E, 0x00}, 0x8A, 0x08},
		{[]byte{0xC0, 0x12, 0x01}, 0xF7, 0x58},
		{[]byte{0x01, 0x02}, 0x1B, 0x2D},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.forward, Checksum(tt.data...))
		assert.Equal(t, tt.reverse, ChecksumReverse(tt.data...))
		assert.NotEqual(t, Checksum(tt.data...), ChecksumReverse(tt.data...))
	}
}

func TestChecksumReverse_MostlyDiffersOnRandomInput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	differ, total := 0, 0

	for range 2000 {
		n := 2 + rng.Intn(3)
		data := make([]byte, n)
		rng.Read(data)
		if isPalindrome(data) {
			continue
		}
		total++
		if Checksum(data...) != ChecksumReverse(data...) {
			differ++
		}
	}

	// A swap of the two orders would make every sample equal.
	assert.Greater(t, float64(differ)/float64(total), 0.95)
}

func TestChecksum_SingleByteEqualsReverse(t *testing.T) {
	for b := range 256 {
		assert.Equal(t, Checksum(byte(b)), ChecksumReverse(byte(b)))
	}
}

func isPalindrome(b []byte) bool {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		if b[i] != b[j] {
			return false
		}
	}
	return true
}
