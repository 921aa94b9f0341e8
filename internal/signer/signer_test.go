package signer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
)

func writeTestKey(t *testing.T) (path string, pub *ecdsa.PublicKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshaling PKCS8: %v", err)
	}
	dir := t.TempDir()
	path = filepath.Join(dir, "key.pem")
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("writing key: %v", err)
	}
	return path, &key.PublicKey
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	keyPath, pub := writeTestKey(t)
	key, err := LoadPrivateKey(keyPath)
	if err != nil {
		t.Fatalf("LoadPrivateKey: %v", err)
	}

	dir := t.TempDir()
	target := filepath.Join(dir, "index.txt")
	if err := os.WriteFile(target, []byte("com.example.app:7\n1700000000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Sign(key, target); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	body, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(body[:0]) != "" {
		// no-op assertion to keep body referenced defensively
	}

	if err := Verify(pub, target); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	keyPath, pub := writeTestKey(t)
	key, err := LoadPrivateKey(keyPath)
	if err != nil {
		t.Fatalf("LoadPrivateKey: %v", err)
	}

	dir := t.TempDir()
	target := filepath.Join(dir, "index.txt")
	if err := os.WriteFile(target, []byte("com.example.app:7\n1700000000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Sign(key, target); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	body, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	body = append(body, []byte("tampered\n")...)
	if err := os.WriteFile(target, body, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Verify(pub, target); err == nil {
		t.Fatal("Verify succeeded on tampered file, want error")
	}
}

func TestSamePublicKey(t *testing.T) {
	_, pub1 := writeTestKey(t)
	_, pub2 := writeTestKey(t)

	pem1, err := PublicKeyPEM(pub1)
	if err != nil {
		t.Fatal(err)
	}
	pem2, err := PublicKeyPEM(pub2)
	if err != nil {
		t.Fatal(err)
	}

	same, err := SamePublicKey([]byte(pem1), []byte(pem1))
	if err != nil || !same {
		t.Errorf("SamePublicKey(a,a) = %v, %v; want true, nil", same, err)
	}
	same, err = SamePublicKey([]byte(pem1), []byte(pem2))
	if err != nil || same {
		t.Errorf("SamePublicKey(a,b) = %v, %v; want false, nil", same, err)
	}
}
