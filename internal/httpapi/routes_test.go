package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/heist-sync/internal/engine"
	"github.com/DoyleJ11/heist-sync/internal/hub"
	"github.com/DoyleJ11/heist-sync/internal/lobby"
)

func TestGenerateCode(t *testing.T) {
	valid := regexp.MustCompile(`^[A-Z0-9]{6}$`)
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, valid, code)
	}
}

func TestRoutes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := hub.NewHub(ctx)
	srv := httptest.NewServer(SetupRoutes(h, Options{Rules: engine.DefaultRules()}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/tables", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Code, 6)

	reply := make(chan *lobby.Lobby, 1)
	h.Inbox() <- hub.GetLobby{Code: body.Code, Reply: reply}
	assert.NotNil(t, <-reply, "created table should be registered")

	resp, err = http.Get(srv.URL + "/tables")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
