package sms

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clipperhq/growthcore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwilioClient_Send(t *testing.T) {
	t.Run("should post a form-encoded message with basic auth", func(t *testing.T) {
		// given
		var captured *http.Request
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			captured = r
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"sid":"SM123","status":"accepted"}`))
		}))
		defer server.Close()
		client := NewTwilioClient(config.Twilio{AccountSid: "AC1", AuthToken: "secret", BaseUrl: server.URL + "/"})

		// when
		result, err := client.Send(context.Background(), Message{
			To:                  "+15551234567",
			MessagingServiceSid: "MG-marketing",
			Body:                "hello",
			StatusCallback:      "https://hooks.example.com/sms/status",
			MediaUrl:            "https://cdn.example.com/a.jpg",
		})

		// then
		require.NoError(t, err)
		assert.Equal(t, SendResult{Sid: "SM123", Status: "accepted"}, result)
		require.NotNil(t, captured)
		assert.Equal(t, http.MethodPost, captured.Method)
		assert.Equal(t, "/2010-04-01/Accounts/AC1/Messages.json", captured.URL.Path)
		user, pass, ok := captured.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC1", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "+15551234567", captured.PostForm.Get("To"))
		assert.Equal(t, "MG-marketing", captured.PostForm.Get("MessagingServiceSid"))
		assert.Equal(t, "hello", captured.PostForm.Get("Body"))
		assert.Equal(t, "https://hooks.example.com/sms/status", captured.PostForm.Get("StatusCallback"))
		assert.Equal(t, "https://cdn.example.com/a.jpg", captured.PostForm.Get("MediaUrl"))
	})

	t.Run("should omit optional fields", func(t *testing.T) {
		var captured *http.Request
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			captured = r
			_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
		}))
		defer server.Close()
		client := NewTwilioClient(config.Twilio{AccountSid: "AC1", AuthToken: "secret", BaseUrl: server.URL})

		_, err := client.Send(context.Background(), Message{To: "+15551234567", MessagingServiceSid: "MG-otp", Body: "123456"})

		require.NoError(t, err)
		_, hasMedia := captured.PostForm["MediaUrl"]
		_, hasCallback := captured.PostForm["StatusCallback"]
		assert.False(t, hasMedia)
		assert.False(t, hasCallback)
	})

	t.Run("should return the provider error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":21610,"message":"Attempt to send to unsubscribed recipient","status":400}`))
		}))
		defer server.Close()
		client := NewTwilioClient(config.Twilio{AccountSid: "AC1", AuthToken: "secret", BaseUrl: server.URL})

		_, err := client.Send(context.Background(), Message{To: "+15551234567", MessagingServiceSid: "MG", Body: "hi"})

		var providerErr *ProviderError
		require.True(t, errors.As(err, &providerErr))
		assert.Equal(t, http.StatusBadRequest, providerErr.StatusCode)
		assert.Equal(t, 21610, providerErr.Code)
		assert.Equal(t, "Attempt to send to unsubscribed recipient", providerErr.Message)
	})

	t.Run("should fall back to the status text for an empty error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()
		client := NewTwilioClient(config.Twilio{AccountSid: "AC1", AuthToken: "secret", BaseUrl: server.URL})

		_, err := client.Send(context.Background(), Message{To: "+15551234567", MessagingServiceSid: "MG", Body: "hi"})

		var providerErr *ProviderError
		require.True(t, errors.As(err, &providerErr))
		assert.Equal(t, http.StatusServiceUnavailable, providerErr.StatusCode)
		assert.Equal(t, "Service Unavailable", providerErr.Message)
	})

	t.Run("should refuse to send without credentials", func(t *testing.T) {
		client := NewTwilioClient(config.Twilio{BaseUrl: "http://127.0.0.1:1"})

		_, err := client.Send(context.Background(), Message{To: "+15551234567", Body: "hi"})

		require.Error(t, err)
		var providerErr *ProviderError
		assert.False(t, errors.As(err, &providerErr))
	})
}
