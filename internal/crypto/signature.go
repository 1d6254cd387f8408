package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// CallVersion is the envelope layout version written first by CallPayload.
const CallVersion byte = 1

const callDomain = "cigmint/call"

// NewKeypair generates an Ed25519 keypair.
func NewKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// KeyFromSeed expands a 32-byte seed into a private key.
func KeyFromSeed(seed []byte) (ed25519.PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid ed25519 seed length %d", len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// SignerID is a short, stable, human-friendly fingerprint of a public key.
func SignerID(pub ed25519.PublicKey) string {
	return base58.Encode(pub)
}

// Sign returns an Ed25519 signature over payload.
func Sign(priv ed25519.PrivateKey, payload []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 private key length")
	}
	return ed25519.Sign(priv, payload), nil
}

// Verify checks an Ed25519 signature over payload.
func Verify(pub ed25519.PublicKey, payload, sig []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid ed25519 public key length")
	}
	if !ed25519.Verify(pub, payload, sig) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

// CallPayload encodes the fields of a remote call into the canonical bytes
// that get signed. Every field is length-prefixed so no two distinct calls
// share an encoding.
func CallPayload(version byte, expiryUnixNano int64, canister, method, nonce, sender string, body []byte) ([]byte, error) {
	var b bytes.Buffer
	writeField(&b, callDomain)
	b.WriteByte(version)
	if err := binary.Write(&b, binary.BigEndian, expiryUnixNano); err != nil {
		return nil, err
	}
	writeField(&b, canister)
	writeField(&b, method)
	writeField(&b, nonce)
	writeField(&b, sender)
	writeBytes(&b, body)
	return b.Bytes(), nil
}

func writeField(b *bytes.Buffer, s string) {
	writeBytes(b, []byte(s))
}

func writeBytes(b *bytes.Buffer, v []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
	b.Write(lenBuf[:])
	if len(v) > 0 {
		b.Write(v)
	}
}
