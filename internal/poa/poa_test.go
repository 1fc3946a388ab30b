package poa

import "testing"

func validKey() []byte {
	return make([]byte, 65)
}

func TestNewAcceptsWellFormedParameters(t *testing.T) {
	set := []Validator{{Address: "addr-1", PublicKey: validKey()}}
	p, err := New(set, 15, 1, 1, 1, 0)
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	if !p.IsValidator("addr-1") {
		t.Fatal("validator present in ValidatorSet was not recognized by IsValidator")
	}
}

func TestNewRejectsInvalidParameters(t *testing.T) {
	cases := []struct {
		name        string
		set         []Validator
		blockPeriod int64
		threshold   int
		minTxs      int
	}{
		{"empty validator set", nil, 15, 0, 0},
		{"zero block period", []Validator{{Address: "a", PublicKey: validKey()}}, 0, 0, 0},
		{"negative block period", []Validator{{Address: "a", PublicKey: validKey()}}, -1, 0, 0},
		{"threshold above validator count", []Validator{{Address: "a", PublicKey: validKey()}}, 15, 2, 0},
		{"negative threshold", []Validator{{Address: "a", PublicKey: validKey()}}, 15, -1, 0},
		{"negative min-txs", []Validator{{Address: "a", PublicKey: validKey()}}, 15, 0, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.set, tc.blockPeriod, 1, 1, tc.threshold, tc.minTxs); err == nil {
				t.Fatalf("New(%s): expected error, got none", tc.name)
			}
		})
	}
}

func TestNewRejectsMalformedValidatorEntries(t *testing.T) {
	cases := []struct {
		name string
		set  []Validator
	}{
		{"empty address", []Validator{{Address: "", PublicKey: validKey()}}},
		{"short public key", []Validator{{Address: "addr-1", PublicKey: make([]byte, 10)}}},
		{"empty public key", []Validator{{Address: "addr-1", PublicKey: nil}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.set, 15, 1, 1, 0, 0); err == nil {
				t.Fatalf("New(%s): expected error, got none", tc.name)
			}
		})
	}
}

func TestIsValidatorAndPublicKeyFor(t *testing.T) {
	key := validKey()
	key[0] = 0x04
	set := []Validator{
		{Address: "addr-1", PublicKey: key},
		{Address: "addr-2", PublicKey: validKey()},
	}
	p, err := New(set, 15, 1, 1, 1, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if p.IsValidator("addr-3") {
		t.Fatal("IsValidator reported membership for an address not in the set")
	}
	got, ok := p.PublicKeyFor("addr-1")
	if !ok {
		t.Fatal("PublicKeyFor did not find a known validator")
	}
	if string(got) != string(key) {
		t.Fatal("PublicKeyFor returned the wrong public key")
	}
	if _, ok := p.PublicKeyFor("addr-3"); ok {
		t.Fatal("PublicKeyFor unexpectedly found an unregistered address")
	}
}

func TestDecodeValidatorHex(t *testing.T) {
	t.Run("valid 65-byte key", func(t *testing.T) {
		hexKey := "04" + repeatHex("ab", 64)
		b, err := DecodeValidatorHex(hexKey)
		if err != nil {
			t.Fatalf("DecodeValidatorHex: unexpected error: %v", err)
		}
		if len(b) != 65 {
			t.Fatalf("expected 65 decoded bytes, got %d", len(b))
		}
	})

	t.Run("invalid hex", func(t *testing.T) {
		if _, err := DecodeValidatorHex("not-hex"); err == nil {
			t.Fatal("expected an error decoding invalid hex")
		}
	})

	t.Run("wrong length", func(t *testing.T) {
		if _, err := DecodeValidatorHex("aabbcc"); err == nil {
			t.Fatal("expected an error for a key of the wrong length")
		}
	})
}

func repeatHex(pair string, n int) string {
	out := make([]byte, 0, len(pair)*n)
	for i := 0; i < n; i++ {
		out = append(out, pair...)
	}
	return string(out)
}
