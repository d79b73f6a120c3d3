package abi

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Keccak256 returns the legacy Keccak-256 digest (the Ethereum variant, not
// SHA3-256) of the concatenated inputs.
func Keccak256(data ...[]byte) [32]byte {
	var out [32]byte
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	h.Sum(out[:0])
	return out
}

// HashEvent digests a canonical event signature such as
// "Transfer(address,uint256)" into the topic-0 value used by log filters.
func HashEvent(signature string) [32]byte {
	return Keccak256([]byte(signature))
}

// SelectorOf returns the first four bytes of the signature digest.
func SelectorOf(signature string) [4]byte {
	var sel [4]byte
	h := HashEvent(signature)
	copy(sel[:], h[:4])
	return sel
}

// Checksum renders the address in EIP-55 mixed-case form.
func (a Address) Checksum() string {
	lower := hex.EncodeToString(a[:])
	hash := Keccak256([]byte(lower))

	result := make([]byte, 2+len(lower))
	result[0], result[1] = '0', 'x'
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		nibble := hash[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 && c >= 'a' && c <= 'f' {
			c -= 32
		}
		result[2+i] = c
	}
	return string(result)
}
