package access

import "crypto/rand"

// codeAlphabet holds every glyph a code may contain. Visually confusable
// characters (0/O, 1/I/L) are excluded so codes survive being read aloud or
// copied by hand.
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// CodeLength is the fixed length of an access code.
const CodeLength = 8

// maxUnbiasedByte is the largest multiple of the alphabet size that fits in
// a byte. Bytes at or above it are rejected, so reducing an accepted byte
// modulo the alphabet size leaves every symbol equally likely.
const maxUnbiasedByte = byte(256 / len(codeAlphabet) * len(codeAlphabet))

// CreateAccessCode returns a random 8-character access code drawn uniformly
// from the unambiguous alphabet. The generator is stateless and safe for
// concurrent use; uniqueness against live requests is the caller's job.
func CreateAccessCode() string {
	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength)
	for len(code) < CodeLength {
		if _, err := rand.Read(buf); err != nil {
			// crypto/rand reading from the OS source does not fail in practice
			panic("access: reading random source: " + err.Error())
		}
		for _, b := range buf {
			if b >= maxUnbiasedByte {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == CodeLength {
				break
			}
		}
	}
	return string(code)
}
