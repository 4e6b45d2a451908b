package crypto

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, 20)
	raw[0] = 0xab
	raw[19] = 0x01
	addr := NewAddress(AccountPrefix, raw)

	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(AccountPrefix)+"1") {
		t.Fatalf("unexpected bech32 encoding %q", encoded)
	}

	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("round trip mismatch: %s vs %s", decoded, addr)
	}
	if decoded.Prefix() != AccountPrefix {
		t.Fatalf("prefix lost: %s", decoded.Prefix())
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress(""); err == nil {
		t.Fatal("empty input must fail")
	}
	if _, err := DecodeAddress("not-bech32"); err == nil {
		t.Fatal("invalid bech32 must fail")
	}
}

func TestIsZero(t *testing.T) {
	if !(Address{}).IsZero() {
		t.Fatal("empty address must be zero")
	}
	if !NewAddress(AccountPrefix, make([]byte, 20)).IsZero() {
		t.Fatal("all-zero bytes must be zero")
	}
	raw := make([]byte, 20)
	raw[7] = 1
	if NewAddress(AccountPrefix, raw).IsZero() {
		t.Fatal("non-zero bytes must not be zero")
	}
}

func TestSignRecoverRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	msg := []byte("stablemint price submission")

	sig, err := key.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("expected 65-byte signature, got %d", len(sig))
	}

	recovered, err := RecoverAddress(msg, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if !recovered.Equal(key.PubKey().Address()) {
		t.Fatalf("recovered %s, want %s", recovered, key.PubKey().Address())
	}

	other, err := RecoverAddress([]byte("different payload"), sig)
	if err == nil && other.Equal(key.PubKey().Address()) {
		t.Fatal("signature must not verify for a different payload")
	}
}

func TestPrivateKeyHexRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	hexKey := "0x" + hex.EncodeToString(key.Bytes())

	parsed, err := PrivateKeyFromHex(hexKey)
	if err != nil {
		t.Fatalf("parse hex key: %v", err)
	}
	if !parsed.PubKey().Address().Equal(key.PubKey().Address()) {
		t.Fatal("hex round trip changed the key identity")
	}

	if _, err := PrivateKeyFromHex(""); err == nil {
		t.Fatal("empty key must fail")
	}
	if _, err := PrivateKeyFromHex("zz"); err == nil {
		t.Fatal("non-hex key must fail")
	}
}
