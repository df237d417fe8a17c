package protocol

// Polynomial is the CRC-8 generator polynomial (x^8 + x^2 + x + 1).
const Polynomial byte = 0x07

// crcTable is the byte-at-a-time lookup table for Polynomial.
var crcTable = func() (t [256]byte) {
	for i := range t {
		t[i] = crcUpdateBitwise(0, byte(i))
	}
	return t
}()

// crcUpdateBitwise feeds one byte into the accumulator, MSB first.
func crcUpdateBitwise(crc byte, b byte) byte {
	crc ^= b
	for range 8 {
		if crc&0x80 != 0 {
			crc = crc<<1 ^ Polynomial
		} else {
			crc <<= 1
		}
	}
	return crc
}

// Checksum returns the CRC-8 of data processed from the first byte to the last.
func Checksum(data ...byte) byte {
	var crc byte
	for _, b := range data {
		crc = crcTable[crc^b]
	}
	return crc
}

// ChecksumReverse returns the CRC-8 of data processed from the last byte to the first.
func ChecksumReverse(data ...byte) byte {
	var crc byte
	for i := len(data) - 1; i >= 0; i-- {
		crc = crcTable[crc^data[i]]
	}
	return crc
}
