// Package notifications delivers push messages to devices. Delivery is best
// effort: callers log failures and never undo persisted state because of them.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/contacttrace/internal/common"
	"github.com/dmitrijs2005/contacttrace/internal/logging"
	"github.com/dmitrijs2005/contacttrace/internal/netx"
)

// Notification is a push message. Data is delivered to the app silently;
// Title and Body, when set, are shown to the user.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

var ErrRejected = errors.New("push rejected")

type firebaseMessage struct {
	To           string                `json:"to"`
	Priority     string                `json:"priority"`
	Notification *firebaseNotification `json:"notification,omitempty"`
	Data         map[string]string     `json:"data,omitempty"`
}

type firebaseNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type firebaseResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		Error string `json:"error"`
	} `json:"results"`
}

// FirebaseSender talks to the Firebase Cloud Messaging HTTP endpoint.
type FirebaseSender struct {
	client *http.Client
	url    string
	header http.Header
}

func NewFirebaseSender(client *http.Client, url, serverKey, senderID string) *FirebaseSender {
	h := http.Header{}
	h.Set("Authorization", "key="+serverKey)
	h.Set("Sender", "id="+senderID)
	return &FirebaseSender{client: client, url: url, header: h}
}

func (s *FirebaseSender) Send(ctx context.Context, pushToken string, n Notification) error {
	msg := firebaseMessage{To: pushToken, Priority: "high", Data: n.Data}
	if n.Title != "" || n.Body != "" {
		msg.Notification = &firebaseNotification{Title: n.Title, Body: n.Body}
	}

	var resp firebaseResponse
	if err := netx.PostJSON(ctx, s.client, s.url, s.header, msg, &resp); err != nil {
		var se *netx.StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return fmt.Errorf("%w: %v", ErrRejected, err)
		}
		return common.Unavailable("push", err)
	}
	if resp.Failure > 0 {
		reason := "unknown"
		if len(resp.Results) > 0 && resp.Results[0].Error != "" {
			reason = resp.Results[0].Error
		}
		return fmt.Errorf("%w: %s", ErrRejected, reason)
	}
	return nil
}

// LogSender only logs notifications. It stands in for push delivery when no
// messaging endpoint is configured.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger.With("module", "push")}
}

func (s *LogSender) Send(ctx context.Context, pushToken string, n Notification) error {
	s.logger.Info(ctx, "push skipped, no messaging endpoint configured", "title", n.Title, "data_keys", len(n.Data))
	return nil
}
