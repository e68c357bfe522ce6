package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emblem/internal/verification/handler"
	"emblem/internal/verification/models"
	id "emblem/pkg/domain"
	dErrors "emblem/pkg/domain-errors"
)

type fakeService struct {
	gotProvider  string
	gotPayload   json.RawMessage
	gotSessionID string

	session *models.Session
	err     error
}

func (f *fakeService) HandleCallback(_ context.Context, providerName string, payload json.RawMessage, sessionIDArg string) (*models.Session, error) {
	f.gotProvider = providerName
	f.gotPayload = payload
	f.gotSessionID = sessionIDArg
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func completedSession(t *testing.T) *models.Session {
	t.Helper()
	now := time.Now()
	session, err := models.NewSession(id.NewSessionID(), "0x8ba1f109551bd432803012645ac136ddd64dba72", "polygonid", models.TypePrimary, now, now.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, session.Complete("did:example:abc", nil, now))
	return session
}

func newTestServer(service *fakeService) *httptest.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := chi.NewRouter()
	handler.New(service, logger).RegisterRoutes(router)
	return httptest.NewServer(router)
}

func postCallback(t *testing.T, url string, body []byte) (*http.Response, map[string]string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestCallbackAcknowledgesCompletion(t *testing.T) {
	session := completedSession(t)
	service := &fakeService{session: session}
	server := newTestServer(service)
	defer server.Close()

	resp, body := postCallback(t, server.URL+"/callbacks/polygonid?session="+session.ID.String(), []byte(`{"proof":"zk"}`))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, session.ID.String(), body["session_id"])
	assert.Equal(t, "completed", body["status"])
	assert.NotContains(t, body, "reason")

	assert.Equal(t, "polygonid", service.gotProvider)
	assert.Equal(t, session.ID.String(), service.gotSessionID)
	assert.JSONEq(t, `{"proof":"zk"}`, string(service.gotPayload))
}

func TestCallbackAcceptsSessionIDAlias(t *testing.T) {
	session := completedSession(t)
	service := &fakeService{session: session}
	server := newTestServer(service)
	defer server.Close()

	resp, _ := postCallback(t, server.URL+"/callbacks/polygonid?session_id="+session.ID.String(), nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, session.ID.String(), service.gotSessionID)
}

func TestCallbackReportsFailedOutcomeAs200(t *testing.T) {
	session := completedSession(t)
	session.Status = models.StatusFailed
	session.FailureReason = "claims not satisfied"
	service := &fakeService{session: session}
	server := newTestServer(service)
	defer server.Close()

	resp, body := postCallback(t, server.URL+"/callbacks/polygonid", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode, "processed outcomes must not trigger provider retries")
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "claims not satisfied", body["reason"])
}

func TestCallbackMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{dErrors.New(dErrors.CodeNotFound, "no verification session matches the callback"), http.StatusNotFound},
		{dErrors.New(dErrors.CodeConflict, "session already completed"), http.StatusConflict},
		{dErrors.New(dErrors.CodeBadRequest, "callback carries no session identifier"), http.StatusBadRequest},
		{dErrors.New(dErrors.CodeProvider, "unknown identity provider: nope"), http.StatusBadGateway},
	}

	for _, tc := range cases {
		service := &fakeService{err: tc.err}
		server := newTestServer(service)

		resp, body := postCallback(t, server.URL+"/callbacks/nope", []byte(`{}`))
		server.Close()

		assert.Equal(t, tc.status, resp.StatusCode)
		assert.NotEmpty(t, body["error"])
	}
}
