package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"github.com/0gfoundation/0g-coupon-ledger/internal/couponsig"
)

const (
	HeaderAccount   = "X-Account-Id"
	HeaderMessage   = "X-Signed-Message"
	HeaderSignature = "X-Account-Signature"
)

// SignedRequest is the JSON payload inside X-Signed-Message (fields sorted).
type SignedRequest struct {
	Action     string          `json:"action"`
	ExpiresAt  int64           `json:"expires_at"`
	Nonce      string          `json:"nonce"`
	Payload    json.RawMessage `json:"payload"`
	ResourceID string          `json:"resource_id"`
}

// NewSignedRequest builds a request for action that expires after ttl.
func NewSignedRequest(action, resourceID string, payload any, ttl time.Duration) (*SignedRequest, error) {
	if payload == nil {
		payload = struct{}{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &SignedRequest{
		Action:     action,
		ExpiresAt:  time.Now().Add(ttl).Unix(),
		Nonce:      uuid.NewString(),
		Payload:    raw,
		ResourceID: resourceID,
	}, nil
}

// Headers signs r with kp and returns the authentication headers.
func (r *SignedRequest) Headers(kp *couponsig.Keypair) (map[string]string, error) {
	msg, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal signed request: %w", err)
	}
	sig, err := Sign(kp, msg)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}
	return map[string]string{
		HeaderAccount:   kp.Public.String(),
		HeaderMessage:   base64.StdEncoding.EncodeToString(msg),
		HeaderSignature: hexutil.Encode(sig),
	}, nil
}
