// Package signer is the Signer Facade (spec §4.D): it signs a file by
// prepending a detached Base64 signature line, and verifies the same
// layout. Supported keys are RSA, EC and Ed25519, PKCS8-encoded,
// unencrypted; this mirrors the PEM-loading helpers in the APK identity
// tooling this project grew out of, trimmed to the PKCS8-only contract
// the spec requires.
package signer

import (
	"bufio"
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"os"
)

// PrivateKey wraps a parsed PKCS8 private key together with its derived
// public key, so callers never need to re-derive it.
type PrivateKey struct {
	key    crypto.Signer
	pubKey crypto.PublicKey
}

// LoadPrivateKey reads a PEM-encoded, unencrypted PKCS8 private key
// (RSA, EC or Ed25519) from path.
func LoadPrivateKey(path string) (*PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key %s: %w", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}
	raw, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing PKCS8 private key %s: %w", path, err)
	}
	signer, ok := raw.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("key in %s does not support signing", path)
	}
	switch k := raw.(type) {
	case *rsa.PrivateKey, *ecdsa.PrivateKey, ed25519.PrivateKey:
		_ = k
	default:
		return nil, fmt.Errorf("unsupported key type %T in %s", raw, path)
	}
	return &PrivateKey{key: signer, pubKey: signer.Public()}, nil
}

// PublicKeyPEM returns the PEM encoding of the key's derived public key
// (§6.3 derivePublicKey).
func (p *PrivateKey) PublicKeyPEM() (string, error) {
	return PublicKeyPEM(p.pubKey)
}

// PublicKeyPEM PEM-encodes an arbitrary public key.
func PublicKeyPEM(pub crypto.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshaling public key: %w", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

// LoadPublicKeyPEM parses a PEM-encoded public key from bytes.
func LoadPublicKeyPEM(pemBytes []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	return pub, nil
}

// SamePublicKey reports whether two PEM-encoded public keys are identical
// after normalization (re-encoding to DER and comparing bytes, so
// whitespace/header differences don't cause a false mismatch).
func SamePublicKey(aPEM, bPEM []byte) (bool, error) {
	a, err := LoadPublicKeyPEM(aPEM)
	if err != nil {
		return false, fmt.Errorf("parsing first key: %w", err)
	}
	b, err := LoadPublicKeyPEM(bPEM)
	if err != nil {
		return false, fmt.Errorf("parsing second key: %w", err)
	}
	aDER, err := x509.MarshalPKIXPublicKey(a)
	if err != nil {
		return false, err
	}
	bDER, err := x509.MarshalPKIXPublicKey(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(aDER, bDER), nil
}

// sign produces a signature over data using whatever key type is present.
func sign(key crypto.Signer, data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return rsa.SignPKCS1v15(rand.Reader, k, crypto.SHA256, digest[:])
	case *ecdsa.PrivateKey:
		return ecdsa.SignASN1(rand.Reader, k, digest[:])
	case ed25519.PrivateKey:
		return ed25519.Sign(k, data), nil
	default:
		return nil, fmt.Errorf("unsupported signer type %T", key)
	}
}

// verify checks a signature over data against pub, dispatching on key type.
func verify(pub crypto.PublicKey, data, signature []byte) error {
	digest := sha256.Sum256(data)
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return rsa.VerifyPKCS1v15(k, crypto.SHA256, digest[:], signature)
	case *ecdsa.PublicKey:
		if ecdsa.VerifyASN1(k, digest[:], signature) {
			return nil
		}
		return fmt.Errorf("ECDSA signature verification failed")
	case ed25519.PublicKey:
		if ed25519.Verify(k, data, signature) {
			return nil
		}
		return fmt.Errorf("Ed25519 signature verification failed")
	default:
		return fmt.Errorf("unsupported public key type %T", pub)
	}
}

// SignBytes signs data and returns the Base64 signature line callers can
// prepend themselves. Used where the caller already owns the atomic
// temp-fsync-rename sequence for the destination file (e.g. the metadata
// publisher) and Sign's own internal rename would be a redundant second
// rename over the same path.
func SignBytes(key *PrivateKey, data []byte) (string, error) {
	sig, err := sign(key.key, data)
	if err != nil {
		return "", fmt.Errorf("signing data: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Sign signs file's bytes and prepends the Base64 signature as the file's
// first line, followed by a newline (spec §4.D). After Sign, the file's
// invariant is "first line is the signature line; body starts at the byte
// following that newline."
func Sign(key *PrivateKey, path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s to sign: %w", path, err)
	}
	sig, err := sign(key.key, body)
	if err != nil {
		return fmt.Errorf("signing %s: %w", path, err)
	}
	line := base64.StdEncoding.EncodeToString(sig)

	tmp := path + ".signing.tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating signed temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp)

	if _, err := fmt.Fprintln(f, line); err != nil {
		f.Close()
		return fmt.Errorf("writing signature line: %w", err)
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		return fmt.Errorf("writing signed body: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsyncing signed file: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Verify reads path's first line as a Base64 signature and verifies it
// against the remainder of the file using pub.
func Verify(pub crypto.PublicKey, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s to verify: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	sigLine, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("reading signature line from %s: %w", path, err)
	}
	sigLine = trimNewline(sigLine)
	if sigLine == "" {
		return fmt.Errorf("%s has no signature line", path)
	}
	sig, err := base64.StdEncoding.DecodeString(sigLine)
	if err != nil {
		return fmt.Errorf("malformed signature line in %s: %w", path, err)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading body of %s: %w", path, err)
	}
	if err := verify(pub, body, sig); err != nil {
		return fmt.Errorf("signature verification failed for %s: %w", path, err)
	}
	return nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
