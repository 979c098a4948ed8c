package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/contacttrace/internal/common"
	"github.com/dmitrijs2005/contacttrace/internal/logging"
)

func TestFirebaseSender_Send(t *testing.T) {
	var got firebaseMessage
	var auth, sender string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		sender = r.Header.Get("Sender")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"success":1,"failure":0}`))
	}))
	defer ts.Close()

	s := NewFirebaseSender(ts.Client(), ts.URL, "server-key", "42")
	err := s.Send(context.Background(), "device-token", Notification{Data: map[string]string{"MfaToken": "t"}})
	require.NoError(t, err)

	assert.Equal(t, "key=server-key", auth)
	assert.Equal(t, "id=42", sender)
	assert.Equal(t, "device-token", got.To)
	assert.Equal(t, "t", got.Data["MfaToken"])
	assert.Nil(t, got.Notification)
}

func TestFirebaseSender_RejectedToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":0,"failure":1,"results":[{"error":"InvalidRegistration"}]}`))
	}))
	defer ts.Close()

	err := NewFirebaseSender(ts.Client(), ts.URL, "k", "1").Send(context.Background(), "bad", Notification{Title: "hi"})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "InvalidRegistration")
}

func TestFirebaseSender_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"unauthorized is a rejection", http.StatusUnauthorized, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrRejected)
		}},
		{"server error is unavailable", http.StatusBadGateway, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, common.ErrorDependencyUnavailable)
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer ts.Close()

			err := NewFirebaseSender(ts.Client(), ts.URL, "k", "1").Send(context.Background(), "t", Notification{})
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestFirebaseSender_Canceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewFirebaseSender(ts.Client(), ts.URL, "k", "1").Send(ctx, "t", Notification{})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, common.KindCanceled, common.KindOf(err))
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, NewLogSender(logging.Nop()).Send(context.Background(), "t", Notification{Title: "x"}))
}
