package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"
)

const (
	// Anonymous is the principal of unauthenticated callers.
	Anonymous = "2vxsx-fae"

	selfAuthenticatingTag = 0x02
)

var principalEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

var ErrInvalidPrincipal = errors.New("invalid principal")

// SelfAuthenticating derives the principal of a public key: SHA-224 of the
// DER-encoded key followed by the 0x02 tag.
func SelfAuthenticating(pub ed25519.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum224(der)
	raw := append(sum[:], selfAuthenticatingTag)
	return PrincipalText(raw), nil
}

// PrincipalText renders raw principal bytes: big-endian CRC32 prefix,
// lowercase unpadded base32, dash every five characters.
func PrincipalText(raw []byte) string {
	buf := make([]byte, 4+len(raw))
	binary.BigEndian.PutUint32(buf, crc32.ChecksumIEEE(raw))
	copy(buf[4:], raw)
	enc := strings.ToLower(principalEncoding.EncodeToString(buf))
	var b strings.Builder
	for i, r := range enc {
		if i > 0 && i%5 == 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParsePrincipal decodes principal text and verifies its checksum and
// canonical grouping.
func ParsePrincipal(text string) ([]byte, error) {
	compact := strings.ToUpper(strings.ReplaceAll(text, "-", ""))
	buf, err := principalEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPrincipal, text, err)
	}
	if len(buf) < 4 || len(buf) > 4+29 {
		return nil, fmt.Errorf("%w %q: bad length", ErrInvalidPrincipal, text)
	}
	raw := buf[4:]
	if binary.BigEndian.Uint32(buf[:4]) != crc32.ChecksumIEEE(raw) {
		return nil, fmt.Errorf("%w %q: checksum mismatch", ErrInvalidPrincipal, text)
	}
	if PrincipalText(raw) != text {
		return nil, fmt.Errorf("%w %q: not canonical", ErrInvalidPrincipal, text)
	}
	return raw, nil
}
