package itbit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"coinbot/internal/core"
	"coinbot/internal/exchange/transport"
)

// requester is the seam between the adapter's operations and the wire. Tests
// substitute a fake; production uses signedTransport.
type requester interface {
	SendPublic(ctx context.Context, path string) (transport.Response, error)
	SendAuthenticated(ctx context.Context, method, path string, params map[string]string) (transport.Response, error)
}

// signedTransport implements itBit's request signing: a strictly increasing
// nonce and millisecond timestamp are folded into a JSON array payload
// [VERB, url, body, nonce, timestamp]; the signature is
// HMAC-SHA512(secret, url || SHA256(nonce || payload)), base64 encoded, sent
// as "clientKey:signature" in the Authorization header.
type signedTransport struct {
	client       *http.Client
	baseURL      string
	clientKey    string
	clientSecret string
	nonce        atomic.Int64
}

func newSignedTransport(baseURL, clientKey, clientSecret string, timeout time.Duration) *signedTransport {
	t := &signedTransport{
		client:       &http.Client{Timeout: timeout},
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientKey:    clientKey,
		clientSecret: clientSecret,
	}
	// Seeding from the clock keeps nonces increasing across restarts too;
	// the exchange rejects reused or decreasing nonces outright.
	t.nonce.Store(time.Now().UnixMilli())
	return t
}

func (t *signedTransport) SendPublic(ctx context.Context, path string) (transport.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return transport.Response{}, core.NewPermanentError("building public request", err)
	}
	return transport.Do(t.client, req)
}

func (t *signedTransport) SendAuthenticated(ctx context.Context, method, path string, params map[string]string) (transport.Response, error) {
	invocationURL := t.baseURL + "/" + path
	body := ""

	switch method {
	case http.MethodGet, http.MethodDelete:
		if len(params) > 0 {
			query := url.Values{}
			for k, v := range params {
				query.Set(k, v)
			}
			invocationURL += "?" + query.Encode()
		}
	case http.MethodPost:
		if params == nil {
			params = map[string]string{}
		}
		encoded, err := json.Marshal(params)
		if err != nil {
			return transport.Response{}, core.NewPermanentError("encoding request body", err)
		}
		body = string(encoded)
	default:
		return transport.Response{}, core.NewPermanentError("unsupported HTTP method "+method, nil)
	}

	nonce := strconv.FormatInt(t.nonce.Add(1), 10)
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	signature, err := t.sign(method, invocationURL, body, nonce, timestamp)
	if err != nil {
		return transport.Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, method, invocationURL, strings.NewReader(body))
	if err != nil {
		return transport.Response{}, core.NewPermanentError("building authenticated request", err)
	}
	req.Header.Set("Authorization", t.clientKey+":"+signature)
	req.Header.Set("X-Auth-Timestamp", timestamp)
	req.Header.Set("X-Auth-Nonce", nonce)
	req.Header.Set("Content-Type", "application/json")

	return transport.Do(t.client, req)
}

func (t *signedTransport) sign(method, invocationURL, body, nonce, timestamp string) (string, error) {
	payload, err := json.Marshal([]string{method, invocationURL, body, nonce, timestamp})
	if err != nil {
		return "", core.NewPermanentError("encoding signature payload", err)
	}
	digest := sha256.Sum256(append([]byte(nonce), payload...))

	mac := hmac.New(sha512.New, []byte(t.clientSecret))
	mac.Write([]byte(invocationURL))
	mac.Write(digest[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
