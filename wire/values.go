package wire

import "encoding/base64"

// EncodeItemValues packs a sequence of little-endian 32-bit words into
// the sole supported wire encoding: standard-alphabet base64 with "="
// padding over the words' little-endian byte representation.
func EncodeItemValues(words []uint32) string {
	bytes := make([]byte, 4*len(words))
	for i, w := range words {
		bytes[4*i+0] = byte(w)
		bytes[4*i+1] = byte(w >> 8)
		bytes[4*i+2] = byte(w >> 16)
		bytes[4*i+3] = byte(w >> 24)
	}
	return base64.StdEncoding.EncodeToString(bytes)
}

// DecodeItemValues is the inverse of EncodeItemValues, reconstructing the
// little-endian 32-bit words a base64(u32) string packs. It is used by
// tests exercising the base64 round-trip invariant and could equally
// serve a settable-item write path.
func DecodeItemValues(s string) ([]uint32, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}

	words := make([]uint32, 0, (len(raw)+3)/4)
	for i := 0; i < len(raw); i += 4 {
		var w uint32
		for b := 0; b < 4 && i+b < len(raw); b++ {
			w |= uint32(raw[i+b]) << uint(8*b)
		}
		words = append(words, w)
	}
	return words, nil
}
