package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comigor/chatsync-go/internal/history"
)

func TestHistory_NormalizesRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/chat/history", r.URL.Path)
		require.Equal(t, "user_a b", r.URL.Query().Get("userId"))
		w.Write([]byte(`[
			{"role":"user","content":"hi","timestamp":"2024-01-01T00:00:00Z"},
			{"sender":"ai","content":"hello"},
			{"content":"orphan","userId":"someone-else"}
		]`))
	}))
	defer srv.Close()

	fetchedAt := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	c := NewClient(srv.URL+"/", nil)
	c.now = func() time.Time { return fetchedAt }

	msgs, err := c.History(context.Background(), "user_a b")
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	require.Equal(t, history.RoleUser, msgs[0].Role)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), msgs[0].Timestamp.UTC())
	require.Equal(t, history.RoleAssistant, msgs[1].Role)
	require.Equal(t, fetchedAt, msgs[1].Timestamp)
	require.Equal(t, history.RoleAssistant, msgs[2].Role)
	for _, m := range msgs {
		require.Equal(t, "user_a b", m.UserID)
	}
}

func TestHistory_EmptyBodies(t *testing.T) {
	for _, body := range []string{"", "null", "[]"} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		msgs, err := NewClient(srv.URL, nil).History(context.Background(), "u")
		srv.Close()

		require.NoError(t, err, "body %q", body)
		require.NotNil(t, msgs)
		require.Empty(t, msgs)
	}
}

func TestHistory_SkipsEmptyRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[null, {"content":"x"}, {"role":"user","content":""}]`))
	}))
	defer srv.Close()

	msgs, err := NewClient(srv.URL, nil).History(context.Background(), "u")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "x", msgs[0].Content)
	require.Equal(t, history.RoleAssistant, msgs[0].Role)
}

func TestHistory_Errors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, nil).History(context.Background(), "u")
		var se *ServerError
		require.True(t, errors.As(err, &se))
		require.Equal(t, http.StatusInternalServerError, se.StatusCode)
	})

	t.Run("malformed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"not":"a list"}`))
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, nil).History(context.Background(), "u")
		var se *ServerError
		require.True(t, errors.As(err, &se))
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := NewClient(srv.URL, nil).History(ctx, "u")
		var te *TransportError
		require.True(t, errors.As(err, &te))
		require.True(t, te.Timeout())
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewClient(url, nil).History(context.Background(), "u")
		var te *TransportError
		require.True(t, errors.As(err, &te))
		require.False(t, te.Timeout())
	})
}

func TestSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/chat/message", r.URL.Path)
		require.Equal(t, "user_1", r.Header.Get(UserIDHeader))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, sendRequest{Content: "test", UserID: "user_1"}, req)

		w.Write([]byte(`{"response":"ack"}`))
	}))
	defer srv.Close()

	reply, err := NewClient(srv.URL, nil).Send(context.Background(), "test", "user_1")
	require.NoError(t, err)
	require.Equal(t, "ack", reply)
}

func TestSend_Errors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"bad status", http.StatusBadGateway, `{"response":"ignored"}`},
		{"missing response", http.StatusOK, `{"userId":"u"}`},
		{"not json", http.StatusOK, `<html>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, nil).Send(context.Background(), "x", "u")
			var se *ServerError
			require.True(t, errors.As(err, &se), "got %v", err)
		})
	}
}
