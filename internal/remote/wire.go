package remote

import (
	"encoding/json"
	"fmt"
	"net/url"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ContentType = "application/x-protobuf"

	HeaderSender        = "X-Sender"
	HeaderSenderPubkey  = "X-Sender-Pubkey"
	HeaderNonce         = "X-Nonce"
	HeaderIngressExpiry = "X-Ingress-Expiry"
	HeaderSignature     = "X-Signature"
)

// CallPath is the replica route for a canister method.
func CallPath(canister, method string) string {
	return "/api/v2/canister/" + url.PathEscape(canister) + "/call/" + url.PathEscape(method)
}

// EncodeValue converts a JSON-shaped value into a protobuf structpb.Value
// and marshals it.
func EncodeValue(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	pv, err := structpb.NewValue(generic)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return proto.Marshal(pv)
}

// DecodeValue unmarshals a protobuf structpb.Value into out. A nil out
// discards the value.
func DecodeValue(b []byte, out any) error {
	var pv structpb.Value
	if err := proto.Unmarshal(b, &pv); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(pv.AsInterface())
	if err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}
