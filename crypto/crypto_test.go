package crypto

import (
	"bytes"
	"testing"

	"github.com/ethforge/ethforge/core/types"
)

func TestKeccak256(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{nil, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{[]byte("abc"), "4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45"},
	}
	for _, tt := range tests {
		got := Keccak256(tt.in)
		if want := types.FromHex(tt.want); !bytes.Equal(got, want) {
			t.Errorf("Keccak256(%q) = %x, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSignRecover(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	hash := Keccak256([]byte("sign me"))

	sig, err := Sign(hash, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) != SignatureLength {
		t.Fatalf("signature length = %d, want %d", len(sig), SignatureLength)
	}
	if sig[64] > 1 {
		t.Fatalf("recovery id = %d, want 0 or 1", sig[64])
	}

	pub, err := Ecrecover(hash, sig)
	if err != nil {
		t.Fatal(err)
	}
	want := FromECDSAPub(&key.PublicKey)
	if !bytes.Equal(pub, want) {
		t.Errorf("recovered pubkey mismatch")
	}

	recovered, err := SigToPub(hash, sig)
	if err != nil {
		t.Fatal(err)
	}
	if PubkeyToAddress(*recovered) != PubkeyToAddress(key.PublicKey) {
		t.Errorf("recovered address mismatch")
	}
}

func TestHexToECDSA(t *testing.T) {
	// The EIP-155 example key.
	key, err := HexToECDSA("4646464646464646464646464646464646464646464646464646464646464646")
	if err != nil {
		t.Fatal(err)
	}
	want := types.HexToAddress("9d8a62f656a8d1615c1294fd71e9cfb3e4855a4f")
	if addr := PubkeyToAddress(key.PublicKey); addr != want {
		t.Errorf("address = %v, want %v", addr, want)
	}
}

func TestValidateSignatureValues(t *testing.T) {
	if ValidateSignatureValues(2, secp256k1N, secp256k1halfN, false) {
		t.Error("accepted invalid recovery id")
	}
	if ValidateSignatureValues(0, secp256k1N, secp256k1halfN, false) {
		t.Error("accepted r == N")
	}
}

func TestVerifySignature(t *testing.T) {
	key, _ := GenerateKey()
	hash := Keccak256([]byte("payload"))
	sig, err := Sign(hash, key)
	if err != nil {
		t.Fatal(err)
	}
	pub, _ := Ecrecover(hash, sig)
	// VerifySignature takes the compressed or uncompressed key and R || S.
	if !VerifySignature(pub, hash, sig[:64]) {
		t.Error("valid signature rejected")
	}
	sig[0] ^= 0xff
	if VerifySignature(pub, hash, sig[:64]) {
		t.Error("corrupted signature accepted")
	}
}
