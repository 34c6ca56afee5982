package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient(t *testing.T) {
	var gotAuth, gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.Method + " " + r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		switch r.URL.Path {
		case "/users/42":
			_, _ = w.Write([]byte(`{"id":"42","username":"bob"}`))
		case "/interactions/1/tok/callback":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, `{"message":"Unknown"}`, http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(&Config{BaseURL: srv.URL + "/"}, "secret", nil)

	raw, err := c.Fetch(context.Background(), "user", "42")
	require.NoError(t, err)
	assert.Equal(t, "Bot secret", gotAuth)
	assert.Equal(t, "GET /users/42", gotPath)
	var user struct {
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(raw, &user))
	assert.Equal(t, "bob", user.Username)

	raw, err = c.Post(context.Background(), "/interactions/1/tok/callback", map[string]any{"type": 4})
	require.NoError(t, err)
	assert.Nil(t, raw)
	assert.Equal(t, "POST /interactions/1/tok/callback", gotPath)
	assert.JSONEq(t, `{"type":4}`, gotBody)

	_, err = c.Fetch(context.Background(), "channel", "9")
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
}
