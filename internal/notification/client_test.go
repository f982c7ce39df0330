package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSend(t *testing.T) {
	var got SendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"wamid.42"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", srv.Client())
	id, err := c.Send(context.Background(), SendRequest{To: "+549110000", Body: "hola", MediaURL: "https://x/logo.png"})

	require.NoError(t, err)
	assert.Equal(t, "wamid.42", id)
	assert.Equal(t, "+549110000", got.To)
	assert.Equal(t, "hola", got.Body)
	assert.Equal(t, "https://x/logo.png", got.MediaURL)
}

func TestClientErrors(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		rejected bool
		message  string
	}{
		{"invalid recipient", http.StatusBadRequest, `{"code":"invalid_to","message":"bad number"}`, true, "bad number"},
		{"throttled", http.StatusTooManyRequests, ``, false, "Too Many Requests"},
		{"unauthorized", http.StatusUnauthorized, `{"message":"token expired"}`, false, "token expired"},
		{"outage", http.StatusBadGateway, `<html>`, false, "Bad Gateway"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "", nil).Send(context.Background(), SendRequest{To: "1"})
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.Status)
			assert.Equal(t, tc.message, apiErr.Message)
			assert.Equal(t, tc.rejected, IsRejected(err))
		})
	}
}

func TestClientAcceptsMessageIDField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"messageId":"m-7"}`))
	}))
	defer srv.Close()

	id, err := NewClient(srv.URL, "", nil).Send(context.Background(), SendRequest{To: "1"})
	require.NoError(t, err)
	assert.Equal(t, "m-7", id)
}
