package server

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mithrel/cigmint/internal/crypto"
	"github.com/mithrel/cigmint/internal/identity"
	"github.com/mithrel/cigmint/internal/remote"
)

// maxIngressSkew bounds how far in the future a call may claim to expire.
const maxIngressSkew = 10 * time.Minute

// verifyCall checks the signed envelope of a call and returns the caller
// principal.
func (s *Server) verifyCall(r *http.Request, canister, method string, body []byte) (string, error) {
	sender := strings.TrimSpace(r.Header.Get(remote.HeaderSender))
	if sender == "" {
		return "", fmt.Errorf("missing sender")
	}
	pubB64 := r.Header.Get(remote.HeaderSenderPubkey)
	sigB64 := r.Header.Get(remote.HeaderSignature)
	if pubB64 == "" || sigB64 == "" {
		return "", fmt.Errorf("missing signature")
	}
	pub, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("invalid sender public key")
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return "", fmt.Errorf("invalid signature encoding")
	}

	principal, err := identity.SelfAuthenticating(ed25519.PublicKey(pub))
	if err != nil {
		return "", err
	}
	if principal != sender {
		return "", fmt.Errorf("sender %s does not match public key", sender)
	}

	expiry, err := strconv.ParseInt(r.Header.Get(remote.HeaderIngressExpiry), 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid ingress expiry")
	}
	now := s.now()
	exp := time.Unix(0, expiry)
	if !now.Before(exp) {
		return "", fmt.Errorf("ingress expired")
	}
	if exp.After(now.Add(maxIngressSkew)) {
		return "", fmt.Errorf("ingress expiry too far in the future")
	}

	nonce := r.Header.Get(remote.HeaderNonce)
	if nonce == "" {
		return "", fmt.Errorf("missing nonce")
	}
	payload, err := crypto.CallPayload(crypto.CallVersion, expiry, canister, method, nonce, sender, body)
	if err != nil {
		return "", err
	}
	if err := crypto.Verify(ed25519.PublicKey(pub), payload, sig); err != nil {
		return "", err
	}
	if !s.claimNonce(nonce, exp) {
		return "", fmt.Errorf("replayed call")
	}
	s.log.Debug("call verified",
		zap.String("sender", sender),
		zap.String("signer", crypto.SignerID(ed25519.PublicKey(pub))),
		zap.String("method", method))
	return sender, nil
}

// claimNonce records nonce until exp and reports whether it was unused.
func (s *Server) claimNonce(nonce string, exp time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for n, e := range s.nonces {
		if !now.Before(e) {
			delete(s.nonces, n)
		}
	}
	if _, seen := s.nonces[nonce]; seen {
		return false
	}
	s.nonces[nonce] = exp
	return true
}
