package crypto

import (
	"errors"
	"math/big"
	"strings"
)

// base58Alphabet omits the characters that are easy to confuse when
// handwritten or misread (0, O, I, l).
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var base58Radix = big.NewInt(int64(len(base58Alphabet)))

// Base58Encode renders input as a Base58 string, preserving leading
// zero bytes as leading '1' characters so the encoding round-trips
// through Base58Decode exactly.
func Base58Encode(input []byte) []byte {
	leadingZeros := 0
	for leadingZeros < len(input) && input[leadingZeros] == 0x00 {
		leadingZeros++
	}

	n := new(big.Int).SetBytes(input)
	mod := new(big.Int)
	var digits []byte
	for n.Sign() > 0 {
		n.DivMod(n, base58Radix, mod)
		digits = append(digits, base58Alphabet[mod.Int64()])
	}

	out := make([]byte, 0, leadingZeros+len(digits))
	for i := 0; i < leadingZeros; i++ {
		out = append(out, base58Alphabet[0])
	}
	for i := len(digits) - 1; i >= 0; i-- {
		out = append(out, digits[i])
	}
	return out
}

// Base58Decode inverts Base58Encode, rejecting any byte outside the
// alphabet.
func Base58Decode(input []byte) ([]byte, error) {
	leadingZeros := 0
	for leadingZeros < len(input) && input[leadingZeros] == base58Alphabet[0] {
		leadingZeros++
	}

	n := new(big.Int)
	for _, c := range input[leadingZeros:] {
		digit := strings.IndexByte(base58Alphabet, c)
		if digit < 0 {
			return nil, errors.New("crypto: invalid base58 character")
		}
		n.Mul(n, base58Radix)
		n.Add(n, big.NewInt(int64(digit)))
	}

	body := n.Bytes()
	out := make([]byte, leadingZeros+len(body))
	copy(out[leadingZeros:], body)
	return out, nil
}
