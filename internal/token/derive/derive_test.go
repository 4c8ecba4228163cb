package derive

import "testing"

func TestCodeIsTwentyDigits(t *testing.T) {
	code := Code("04123456789", 5_000_00, "PWP_1741944413000_A1B2C3", "d1")
	if len(code) != CodeLength {
		t.Fatalf("len = %d, want %d", len(code), CodeLength)
	}
	if !IsWellFormed(code) {
		t.Fatalf("derived code %q is not well-formed", code)
	}
}

func TestCodeDeterministic(t *testing.T) {
	a := Code("04123456789", 5_000_00, "PWP_1_X", "salt")
	b := Code("04123456789", 5_000_00, "PWP_1_X", "salt")
	if a != b {
		t.Fatalf("same inputs produced %q and %q", a, b)
	}
}

func TestCodeVariesWithDisambiguator(t *testing.T) {
	a := Code("04123456789", 5_000_00, "PWP_1_X", "salt-a")
	b := Code("04123456789", 5_000_00, "PWP_1_X", "salt-b")
	if a == b {
		t.Fatal("different disambiguators produced identical codes")
	}
}

func TestCodeVariesWithInputs(t *testing.T) {
	base := Code("04123456789", 5_000_00, "PWP_1_X", "salt")
	if Code("04123456780", 5_000_00, "PWP_1_X", "salt") == base {
		t.Fatal("meter number change did not change the code")
	}
	if Code("04123456789", 5_000_01, "PWP_1_X", "salt") == base {
		t.Fatal("amount change did not change the code")
	}
	if Code("04123456789", 5_000_00, "PWP_2_Y", "salt") == base {
		t.Fatal("reference change did not change the code")
	}
}

func TestCodeRoundTripProperty(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := Code("04123456789", int64(100_00+i*37), "PWP_1741944413000_A1B2C3", "salt")
		if !IsWellFormed(code) {
			t.Fatalf("iteration %d produced malformed code %q", i, code)
		}
	}
}

func TestIsWellFormed(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"12345678901234567890", true},
		{"1234567890123456789", false},
		{"123456789012345678901", false},
		{"1234567890123456789x", false},
		{"1234-5678-9012-3456-", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsWellFormed(tc.code); got != tc.want {
			t.Fatalf("IsWellFormed(%q) = %v, want %v", tc.code, got, tc.want)
		}
	}
}
