package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amirasaad/settlement/infra/hubclient"
	"github.com/amirasaad/settlement/webapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPostsEnvelope(t *testing.T) {
	var got struct {
		Topic string         `json:"topic"`
		Data  map[string]any `json:"data"`
	}
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, webapi.CallbackPath, r.URL.Path)
		headers = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(b, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := run([]string{"-url", srv.URL, "-correlation", "c-1", "FiatDeposit", "ownerId=abc", "amount=10.5"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "fiat.deposit.request", got.Topic)
	assert.Equal(t, map[string]any{"ownerId": "abc", "amount": "10.5"}, got.Data)
	assert.Equal(t, "c-1", headers.Get(hubclient.HeaderCorrelationID))
	assert.Equal(t, "cli", headers.Get(hubclient.HeaderSource))
	assert.Contains(t, out.String(), "fiat.deposit.response")
}

func TestRunRejectsUnknownKind(t *testing.T) {
	err := run([]string{"Teleport"}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestRunReportsNon204(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := run([]string{"-url", srv.URL, "GetBalances", "ownerId=abc"}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "200")
}

func TestParsePairs(t *testing.T) {
	_, err := parsePairs([]string{"novalue"})
	assert.Error(t, err)
}
