package echoapi_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/core/chat"
	"github.com/atelierhq/atelier/core/project"
	"github.com/atelierhq/atelier/core/user"
	testutil "github.com/atelierhq/atelier/tests"
)

func Test_chatApi_channels(t *testing.T) {
	env := setup(t)
	admin, _ := env.staffUser(t, "Ada Admin", "ada@atelier.test", user.RoleAdmin)
	samUsr, _ := env.staffUser(t, "Sam Staff", "sam@atelier.test", user.RoleStaff)
	clientUsr, _ := env.clientUser(t, "Acme", "acme@client.test")
	acme := testutil.CreateClient(t, env.clientRepo, "Acme Two")
	p := testutil.CreateProject(t, env.projectRepo, acme.ID, "Rebrand", project.StageIncoming, 1000, nil)
	samToken := env.token(t, samUsr)

	rec := env.do(t, http.MethodPost, "/v1/channels", samToken, chat.NewChannel{Name: "General"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	general := decode[chat.Channel](t, rec)
	assert.Equal(t, "general", general.Name)
	assert.Equal(t, samUsr.ID, general.CreatedBy)

	rec = env.do(t, http.MethodPost, "/v1/channels", samToken, chat.NewChannel{Name: "rebrand", ProjectID: p.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	env.run(t, []httpTest{
		{
			name: "clients have no chat", path: "/v1/channels", token: env.token(t, clientUsr),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden),
		},
		{
			name: "duplicate name", method: http.MethodPost, path: "/v1/channels", token: samToken,
			body:     chat.NewChannel{Name: "GENERAL"},
			wantCode: http.StatusBadRequest, wantData: []byte(`{"name": "a channel with this name already exists"}`),
		},
		{
			name: "unknown project", method: http.MethodPost, path: "/v1/channels", token: samToken,
			body:     chat.NewChannel{Name: "ghost", ProjectID: "0b5c7a3e-1f0a-4d8e-9b7f-2c3d4e5f6a7b"},
			wantCode: http.StatusBadRequest, wantData: []byte(`{"project_id": "project not found"}`),
		},
		{
			name: "staff cannot delete", method: http.MethodDelete, path: "/v1/channels/" + general.ID, token: samToken,
			wantCode: http.StatusForbidden,
		},
	})

	rec = env.do(t, http.MethodGet, "/v1/channels?project_id="+p.ID, samToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]chat.Channel](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/v1/channels", samToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]chat.Channel](t, rec), 2)

	rec = env.do(t, http.MethodDelete, "/v1/channels/"+general.ID, env.token(t, admin), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/v1/channels/"+general.ID, samToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_chatApi_messages(t *testing.T) {
	env := setup(t)
	samUsr, _ := env.staffUser(t, "Sam Staff", "sam@atelier.test", user.RoleStaff)
	samToken := env.token(t, samUsr)

	rec := env.do(t, http.MethodPost, "/v1/channels", samToken, chat.NewChannel{Name: "general"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ch := decode[chat.Channel](t, rec)
	path := "/v1/channels/" + ch.ID + "/messages"

	env.run(t, []httpTest{
		{
			name: "blank body", method: http.MethodPost, path: path, token: samToken,
			body:     chat.NewMessage{Body: "   "},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown channel", method: http.MethodPost, path: "/v1/channels/0b5c7a3e-1f0a-4d8e-9b7f-2c3d4e5f6a7b/messages", token: samToken,
			body:     chat.NewMessage{Body: "hello?"},
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "channel not found"}),
		},
	})

	for _, body := range []string{"morning", "coffee?"} {
		rec := env.do(t, http.MethodPost, path, samToken, chat.NewMessage{Body: body})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		m := decode[chat.Message](t, rec)
		assert.Equal(t, samUsr.ID, m.SenderID)
		assert.Equal(t, samUsr.Name, m.SenderName)
	}

	rec = env.do(t, http.MethodGet, path, samToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	msgs := decode[[]chat.Message](t, rec)
	require.Len(t, msgs, 2)
	assert.ElementsMatch(t, []string{"morning", "coffee?"}, []string{msgs[0].Body, msgs[1].Body})

	rec = env.do(t, http.MethodGet, path+"?limit=1", samToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]chat.Message](t, rec), 1)

	rec = env.do(t, http.MethodGet, path+"?before=2001-01-01", samToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decode[[]chat.Message](t, rec))

	rec = env.do(t, http.MethodGet, path+"?limit=many", samToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_chatApi_stream(t *testing.T) {
	env := setup(t)
	samUsr, _ := env.staffUser(t, "Sam Staff", "sam@atelier.test", user.RoleStaff)
	samToken := env.token(t, samUsr)

	rec := env.do(t, http.MethodPost, "/v1/channels", samToken, chat.NewChannel{Name: "general"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ch := decode[chat.Channel](t, rec)

	ts := httptest.NewServer(env.srv)
	t.Cleanup(ts.Close)

	t.Run("unknown channel", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/channels/0b5c7a3e-1f0a-4d8e-9b7f-2c3d4e5f6a7b/stream", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+samToken)
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("delivers new messages", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// EventSource passes the token in the query string
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/channels/"+ch.ID+"/stream?access_token="+samToken, nil)
		require.NoError(t, err)
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

		// the subscription is live once the headers are out
		rec := env.do(t, http.MethodPost, "/v1/channels/"+ch.ID+"/messages", samToken, chat.NewMessage{Body: "live!"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		posted := decode[chat.Message](t, rec)

		var event, data string
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
			if line == "" && data != "" {
				break
			}
		}
		require.Equal(t, "message", event, scanner.Err())

		var got chat.Message
		require.NoError(t, json.Unmarshal([]byte(data), &got))
		assert.Equal(t, posted.ID, got.ID)
		assert.Equal(t, "live!", got.Body)
	})
}
