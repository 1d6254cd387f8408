package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mithrel/cigmint/internal/crypto"
	"github.com/mithrel/cigmint/internal/identity"
)

var ErrRejected = errors.New("call rejected")

// RejectError is a non-2xx reply from the replica.
type RejectError struct {
	Code    int
	Message string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("call rejected (%d): %s", e.Code, e.Message)
}

func (e *RejectError) Unwrap() error { return ErrRejected }

// Options configures a Client.
type Options struct {
	URL           string
	Timeout       time.Duration
	IngressExpiry time.Duration
	HTTPClient    *http.Client
	Now           func() time.Time
	Logger        *zap.Logger
}

// Client signs calls with an identity and posts them to the replica.
type Client struct {
	baseURL    string
	expiry     time.Duration
	httpClient *http.Client
	now        func() time.Time
	log        *zap.Logger
}

func New(opts Options) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(opts.URL, "/"),
		expiry:     opts.IngressExpiry,
		httpClient: opts.HTTPClient,
		now:        opts.Now,
		log:        opts.Logger,
	}
	if c.httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.expiry <= 0 {
		c.expiry = 5 * time.Minute
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Invoke calls method on canister with payload, signed by id, and decodes
// the reply into out.
func (c *Client) Invoke(ctx context.Context, canister, method string, payload any, id identity.Identity, out any) error {
	body, err := EncodeValue(payload)
	if err != nil {
		return err
	}

	sender := id.Principal()
	nonce := uuid.NewString()
	expiry := c.now().Add(c.expiry).UnixNano()
	msg, err := crypto.CallPayload(crypto.CallVersion, expiry, canister, method, nonce, sender, body)
	if err != nil {
		return err
	}
	sig, err := id.Sign(msg)
	if err != nil {
		return fmt.Errorf("sign %s.%s: %w", canister, method, err)
	}

	headers := http.Header{}
	headers.Set(HeaderSender, sender)
	headers.Set(HeaderSenderPubkey, base64.StdEncoding.EncodeToString(id.PublicKey()))
	headers.Set(HeaderNonce, nonce)
	headers.Set(HeaderIngressExpiry, strconv.FormatInt(expiry, 10))
	headers.Set(HeaderSignature, base64.StdEncoding.EncodeToString(sig))

	start := time.Now()
	respBody, code, err := c.execRequest(ctx, c.baseURL+CallPath(canister, method), headers, body)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", canister, method, err)
	}
	c.log.Debug("remote call",
		zap.String("canister", canister),
		zap.String("method", method),
		zap.String("nonce", nonce),
		zap.Int("status", code),
		zap.Duration("took", time.Since(start)))

	if code >= 300 {
		return rejectFrom(code, respBody)
	}
	return DecodeValue(respBody, out)
}

func (c *Client) execRequest(ctx context.Context, url string, headers http.Header, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	for k, vs := range headers {
		req.Header[k] = vs
	}
	req.Header.Set("Content-Type", ContentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return respBody, resp.StatusCode, nil
}

// Reject is the reply body of a refused call.
type Reject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func rejectFrom(code int, body []byte) error {
	var r Reject
	if err := DecodeValue(body, &r); err != nil || r.Message == "" {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(code)
		}
		return &RejectError{Code: code, Message: msg}
	}
	return &RejectError{Code: code, Message: r.Message}
}
