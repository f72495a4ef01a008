// Package transport owns the single HTTP round trip every adapter call maps
// to, and the low-level failure classification that goes with it: a network
// problem before a usable response is obtained is transient, anything the
// exchange actually answered is handed back untouched for the adapter to
// interpret.
package transport

import (
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"coinbot/internal/core"
)

// Response is the raw result of one exchange round trip. StatusCode is
// always present; Body may be empty on some error paths.
type Response struct {
	StatusCode int
	Status     string
	Body       []byte
}

// OK reports whether the exchange answered with the given status code.
func (r Response) OK(status int) bool { return r.StatusCode == status }

// Do performs req and returns whatever the exchange answered, whatever the
// status code. Connect failures, read timeouts and body-read failures are
// classified transient; the transport never interprets exchange semantics.
func Do(client *http.Client, req *http.Request) (Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return Response{}, core.NewTransientError("request to exchange failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, core.NewTransientError("reading exchange response failed", err)
	}

	logrus.WithFields(logrus.Fields{
		"method": req.Method,
		"url":    req.URL.Redacted(),
		"status": resp.StatusCode,
		"bytes":  len(body),
	}).Debug("exchange round trip")

	return Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
	}, nil
}
