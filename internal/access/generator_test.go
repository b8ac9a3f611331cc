package access

import (
	"strings"
	"testing"
)

func TestCreateAccessCode_Length(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code := CreateAccessCode()
		if len(code) != CodeLength {
			t.Fatalf("CreateAccessCode() length = %d, want %d (code %q)", len(code), CodeLength, code)
		}
	}
}

func TestCreateAccessCode_Alphabet(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code := CreateAccessCode()
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
	}
}

func TestCreateAccessCode_ExcludesAmbiguousGlyphs(t *testing.T) {
	for _, forbidden := range []string{"0", "O", "1", "I", "L"} {
		if strings.Contains(codeAlphabet, forbidden) {
			t.Errorf("alphabet contains ambiguous glyph %q", forbidden)
		}
	}
}

func TestCreateAccessCode_UniformSymbolFrequency(t *testing.T) {
	// 16000 codes of 8 symbols gives ~4129 expected hits per symbol. A
	// modulo-biased draw over a 31-symbol alphabet overshoots the first 8
	// symbols by 12.5%, while sampling noise at this size stays well under
	// the 8% tolerance.
	const draws = 16000
	counts := make(map[byte]int, len(codeAlphabet))
	for i := 0; i < draws; i++ {
		for _, b := range []byte(CreateAccessCode()) {
			counts[b]++
		}
	}

	mean := float64(draws*CodeLength) / float64(len(codeAlphabet))
	for i := 0; i < len(codeAlphabet); i++ {
		got := float64(counts[codeAlphabet[i]])
		if got < mean*0.92 || got > mean*1.08 {
			t.Errorf("symbol %q drawn %d times, expected about %.0f", codeAlphabet[i], counts[codeAlphabet[i]], mean)
		}
	}
}

func TestCreateAccessCode_Varies(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		seen[CreateAccessCode()] = true
	}
	// 100 draws from a 31^8 space colliding down to one value would mean a
	// broken generator
	if len(seen) < 2 {
		t.Errorf("generator produced %d distinct codes out of 100 draws", len(seen))
	}
}
