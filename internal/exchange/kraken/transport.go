package kraken

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"coinbot/internal/core"
	"coinbot/internal/exchange/transport"
)

// requester is the seam between the adapter's operations and the wire.
type requester interface {
	SendPublic(ctx context.Context, apiMethod string, params map[string]string) (transport.Response, error)
	SendPrivate(ctx context.Context, apiMethod string, params map[string]string) (transport.Response, error)
}

// signedTransport implements Kraken's signing: the nonce rides in the
// form-encoded POST body, and API-Sign is
// base64(HMAC-SHA512(base64decode(secret), path || SHA256(nonce || postdata))).
type signedTransport struct {
	client  *http.Client
	baseURL string
	key     string
	secret  []byte // already base64-decoded
	nonce   atomic.Int64
}

func newSignedTransport(baseURL, key string, secret []byte, timeout time.Duration) *signedTransport {
	t := &signedTransport{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		secret:  secret,
	}
	t.nonce.Store(time.Now().UnixMilli())
	return t
}

func (t *signedTransport) SendPublic(ctx context.Context, apiMethod string, params map[string]string) (transport.Response, error) {
	urlStr := t.baseURL + "/0/public/" + apiMethod
	if len(params) > 0 {
		query := url.Values{}
		for k, v := range params {
			query.Set(k, v)
		}
		urlStr += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return transport.Response{}, core.NewPermanentError("building public request", err)
	}
	return transport.Do(t.client, req)
}

func (t *signedTransport) SendPrivate(ctx context.Context, apiMethod string, params map[string]string) (transport.Response, error) {
	path := "/0/private/" + apiMethod
	nonce := strconv.FormatInt(t.nonce.Add(1), 10)

	form := url.Values{}
	form.Set("nonce", nonce)
	for k, v := range params {
		form.Set(k, v)
	}
	postData := form.Encode()

	digest := sha256.Sum256([]byte(nonce + postData))
	mac := hmac.New(sha512.New, t.secret)
	mac.Write([]byte(path))
	mac.Write(digest[:])
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, strings.NewReader(postData))
	if err != nil {
		return transport.Response{}, core.NewPermanentError("building authenticated request", err)
	}
	req.Header.Set("API-Key", t.key)
	req.Header.Set("API-Sign", signature)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return transport.Do(t.client, req)
}
