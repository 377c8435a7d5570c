package room

import "math/rand"

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultCodeLength is the number of characters in an attendance code.
const DefaultCodeLength = 6

// Test seams; codes are short-lived, spoken-aloud secrets, so math/rand is
// deliberate here.
var (
	randIntN  = rand.Intn
	randFloat = rand.Float64
)

// GenerateCode returns a random code of length uppercase letters. Repeated
// calls are not guaranteed distinct: at the default length there are 26^6
// (about 309 million) codes, so collisions among the handful live at once
// are rare, and RegisterRoom retries when one happens.
func GenerateCode(length int) string {
	if length <= 0 {
		length = DefaultCodeLength
	}
	b := make([]byte, length)
	for i := range b {
		b[i] = codeAlphabet[randIntN(len(codeAlphabet))]
	}
	return string(b)
}
