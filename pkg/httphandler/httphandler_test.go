package httphandler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	// Packages
	httphandler "github.com/mutablelogic/go-aitemplate/pkg/httphandler"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
	stream "github.com/mutablelogic/go-aitemplate/pkg/stream"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

///////////////////////////////////////////////////////////////////////////////
// HELPERS

func serveMux(t *testing.T, opts ...httphandler.BackendOpt) (*httphandler.Backend, *http.ServeMux) {
	t.Helper()
	b, err := httphandler.NewBackend(opts...)
	require.NoError(t, err)
	mux := http.NewServeMux()
	httphandler.RegisterHandlers(mux, "/api", b)
	return b, mux
}

// do sends a request with an optional JSON body and bearer token
func do(t *testing.T, mux http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(v)
	default:
		data, err := json.Marshal(v)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func frames(t *testing.T, body io.Reader) []stream.Frame {
	t.Helper()
	var result []stream.Frame
	dec := stream.NewDecoder(body)
	for {
		frame, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return result
		}
		require.NoError(t, err)
		result = append(result, frame)
	}
}

func streamPath(conversation, model, message string, extra url.Values) string {
	q := url.Values{}
	q.Set("conversationId", conversation)
	q.Set("model", model)
	q.Set("message", message)
	for k, v := range extra {
		q[k] = v
	}
	return "/api/chat/stream?" + q.Encode()
}

func login(t *testing.T, mux http.Handler, username, password string) schema.LoginResponse {
	t.Helper()
	w := do(t, mux, http.MethodPost, "/api/auth/login", schema.LoginRequest{Username: username, Password: password}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[schema.LoginResponse](t, w)
}

///////////////////////////////////////////////////////////////////////////////
// TESTS

func Test_httphandler_001(t *testing.T) {
	// Metadata endpoints
	assert := assert.New(t)
	_, mux := serveMux(t, httphandler.WithModel(schema.ModelInfo{
		ModelID:      "gpt-test",
		Provider:     "openai",
		Capabilities: &schema.CapabilitySet{Chat: true, Tools: true},
	}))

	w := do(t, mux, http.MethodGet, "/api/models", nil, "")
	assert.Equal(http.StatusOK, w.Code)
	models := decode[[]schema.ModelInfo](t, w)
	if assert.Len(models, 2) {
		assert.Equal(httphandler.EchoModel, models[0].ModelID)
		assert.Equal("local", models[0].Provider)
		assert.Equal(schema.HealthUp, models[0].Health)
		assert.Equal(&schema.CapabilitySet{Chat: true}, models[0].Capabilities)
		assert.Equal("gpt-test", models[1].ModelID)
	}

	w = do(t, mux, http.MethodGet, "/api/tools", nil, "")
	tools := decode[[]schema.ToolInfo](t, w)
	assert.Equal([]schema.ToolInfo{
		{ToolName: "weather.query", RiskLevel: schema.RiskRead},
		{ToolName: "mcp.time.now", RiskLevel: schema.RiskRead},
	}, tools)

	w = do(t, mux, http.MethodGet, "/api/config", nil, "")
	assert.Equal(schema.AppConfig{AuthEnabled: false}, decode[schema.AppConfig](t, w))

	w = do(t, mux, http.MethodPost, "/api/models", "{}", "")
	assert.Equal(http.StatusMethodNotAllowed, w.Code)
}

func Test_httphandler_002(t *testing.T) {
	// Echo stream with tools
	assert := assert.New(t)
	b, mux := serveMux(t)

	w := do(t, mux, http.MethodGet, streamPath("c1", httphandler.EchoModel, "hello world", url.Values{
		"tools": []string{"weather.query", "no.such.tool"},
	}), nil, "")
	assert.Equal(http.StatusOK, w.Code)
	assert.Equal("text/event-stream", w.Header().Get("Content-Type"))
	assert.NotEmpty(w.Header().Get(httphandler.RequestIDHeader))

	result := frames(t, w.Body)
	require.Len(t, result, 6)
	assert.Equal(schema.EventToolCallProgress, result[0].Event)
	assert.Equal(schema.EventToolCallProgress, result[1].Event)

	var running, done schema.ToolCallInfo
	require.NoError(t, json.Unmarshal([]byte(result[0].Data), &running))
	require.NoError(t, json.Unmarshal([]byte(result[1].Data), &done))
	assert.Equal("tc-1", running.CallID)
	assert.Equal(schema.ToolStatusRunning, running.Status)
	assert.Empty(running.Output)
	assert.NotZero(running.StartedAt)
	assert.Equal("tc-1", done.CallID)
	assert.Equal(schema.ToolStatusDone, done.Status)
	assert.Equal("Mock weather for hello world: sunny, 26C", done.Output)
	assert.NotNil(done.DurationMs)

	assert.Equal(stream.Frame{Event: schema.EventToken, Data: `{"token":"echo: "}`}, result[2])
	assert.Equal(stream.Frame{Event: schema.EventToken, Data: `{"token":"hello "}`}, result[3])
	assert.Equal(stream.Frame{Event: schema.EventToken, Data: `{"token":"world "}`}, result[4])
	assert.Equal(stream.Frame{Event: schema.EventDone, Data: "done"}, result[5])

	assert.Equal([]schema.MessageInfo{
		{Role: schema.RoleUser, Content: "hello world"},
		{Role: schema.RoleAssistant, Content: "echo: hello world "},
	}, b.Messages("c1"))
}

func Test_httphandler_003(t *testing.T) {
	// Skills are applied before anything else
	assert := assert.New(t)
	_, mux := serveMux(t, httphandler.WithSkill("writer", "1.0", "Write well"))

	w := do(t, mux, http.MethodGet, streamPath("c1", httphandler.EchoModel, "hi", url.Values{
		"skills": []string{"writer@1.0", "unknown"},
	}), nil, "")
	result := frames(t, w.Body)
	require.Len(t, result, 4)
	assert.Equal(stream.Frame{Event: schema.EventSkillApply, Data: `[{"name":"writer","version":"1.0"}]`}, result[0])
	assert.Equal(stream.Frame{Event: schema.EventToken, Data: `{"token":"echo: "}`}, result[1])
	assert.Equal(stream.Frame{Event: schema.EventToken, Data: `{"token":"hi "}`}, result[2])
	assert.Equal(stream.Frame{Event: schema.EventDone, Data: "done"}, result[3])
}

func Test_httphandler_004(t *testing.T) {
	// Unknown model ends with an error frame then done
	assert := assert.New(t)
	b, mux := serveMux(t)

	w := do(t, mux, http.MethodGet, streamPath("c1", "nope", "hi", nil), nil, "")
	assert.Equal(http.StatusOK, w.Code)
	assert.Equal([]stream.Frame{
		{Event: schema.EventError, Data: "Model not found: nope"},
		{Event: schema.EventDone, Data: "done"},
	}, frames(t, w.Body))
	assert.Empty(b.Messages("c1"))
}

func Test_httphandler_005(t *testing.T) {
	// Missing parameters and unacceptable formats
	assert := assert.New(t)
	_, mux := serveMux(t)

	w := do(t, mux, http.MethodGet, streamPath("", httphandler.EchoModel, "hi", nil), nil, "")
	assert.Equal(http.StatusBadRequest, w.Code)
	w = do(t, mux, http.MethodGet, streamPath("c1", httphandler.EchoModel, "", nil), nil, "")
	assert.Equal(http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodGet, streamPath("c1", httphandler.EchoModel, "hi", nil), nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(http.StatusNotAcceptable, rec.Code)
}

func Test_httphandler_006(t *testing.T) {
	// Scripted frames are sent unchanged
	assert := assert.New(t)
	script := []stream.Frame{
		{Event: schema.EventToken, Data: "raw"},
		{Event: "mystery", Data: "{}"},
		{Data: "unnamed"},
		{Event: schema.EventDone, Data: "done"},
	}
	_, mux := serveMux(t, httphandler.WithScript(func(schema.StreamRequest) []stream.Frame {
		return script
	}))

	w := do(t, mux, http.MethodGet, streamPath("c1", "any", "hi", nil), nil, "")
	assert.Equal(script, frames(t, w.Body))
}

func Test_httphandler_007(t *testing.T) {
	// Non-streaming chat
	assert := assert.New(t)
	b, mux := serveMux(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(
		`{"conversationId":"c2","modelId":"local-echo","message":"hi there","tools":["mcp.time.now"]}`,
	))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(httphandler.RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[schema.ChatResponse](t, w)
	assert.Equal("req-1", resp.RequestID)
	assert.Equal("c2", resp.ConversationID)
	assert.Equal("echo: hi there", resp.Content)
	if assert.Len(resp.ToolCalls, 1) {
		assert.Equal("mcp.time.now", resp.ToolCalls[0].ToolName)
		assert.True(strings.HasPrefix(resp.ToolCalls[0].Output, "Current UTC time from MCP mock tool: "))
	}
	assert.Len(b.Messages("c2"), 2)

	w = do(t, mux, http.MethodPost, "/api/chat", schema.ChatRequest{ConversationID: "c2", ModelID: "nope", Message: "hi"}, "")
	assert.Equal(http.StatusBadRequest, w.Code)
	apiErr := decode[schema.ApiError](t, w)
	assert.Equal("MODEL_NOT_FOUND", apiErr.ErrorCode)
	assert.False(apiErr.Retryable)

	w = do(t, mux, http.MethodPost, "/api/chat", schema.ChatRequest{ConversationID: "c2", ModelID: "local-echo"}, "")
	assert.Equal(http.StatusBadRequest, w.Code)
	apiErr = decode[schema.ApiError](t, w)
	assert.Equal("INVALID_REQUEST", apiErr.ErrorCode)
	assert.True(apiErr.Retryable)
}

func Test_httphandler_008(t *testing.T) {
	// Conversations
	assert := assert.New(t)
	_, mux := serveMux(t)

	for _, id := range []string{"a", "b", "a"} {
		w := do(t, mux, http.MethodGet, streamPath(id, httphandler.EchoModel, "hi", nil), nil, "")
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := do(t, mux, http.MethodGet, "/api/conversations", nil, "")
	assert.Equal([]schema.ConversationInfo{{ConversationID: "a"}, {ConversationID: "b"}}, decode[[]schema.ConversationInfo](t, w))

	w = do(t, mux, http.MethodGet, "/api/conversations/a/messages", nil, "")
	assert.Len(decode[[]schema.MessageInfo](t, w), 4)

	w = do(t, mux, http.MethodDelete, "/api/conversations/a", nil, "")
	assert.Equal(http.StatusOK, w.Code)

	w = do(t, mux, http.MethodGet, "/api/conversations/a/messages", nil, "")
	assert.Equal([]schema.MessageInfo{}, decode[[]schema.MessageInfo](t, w))
	w = do(t, mux, http.MethodGet, "/api/conversations", nil, "")
	assert.Equal([]schema.ConversationInfo{{ConversationID: "b"}}, decode[[]schema.ConversationInfo](t, w))
}

func Test_httphandler_009(t *testing.T) {
	// Access levels
	assert := assert.New(t)
	_, mux := serveMux(t,
		httphandler.WithAuth(true),
		httphandler.WithUser("alice", "secret", httphandler.RoleUser),
		httphandler.WithUser("root", "toor", httphandler.RoleAdmin, httphandler.RoleUser),
	)

	// Public
	w := do(t, mux, http.MethodGet, "/api/config", nil, "")
	assert.Equal(http.StatusOK, w.Code)
	assert.True(decode[schema.AppConfig](t, w).AuthEnabled)

	// Without a token
	w = do(t, mux, http.MethodGet, "/api/models", nil, "")
	assert.Equal(http.StatusUnauthorized, w.Code)
	w = do(t, mux, http.MethodGet, "/api/models", nil, "not-a-jwt")
	assert.Equal(http.StatusUnauthorized, w.Code)

	// Wrong password
	w = do(t, mux, http.MethodPost, "/api/auth/login", schema.LoginRequest{Username: "alice", Password: "nope"}, "")
	assert.Equal(http.StatusUnauthorized, w.Code)

	alice := login(t, mux, "alice", "secret")
	assert.Equal("Bearer", alice.TokenType)
	assert.Equal(int64(7200), alice.ExpiresIn)
	assert.NotEmpty(alice.RefreshToken)
	if assert.NotNil(alice.User) {
		assert.Equal("alice", alice.User.Username)
	}

	w = do(t, mux, http.MethodGet, "/api/models", nil, alice.AccessToken)
	assert.Equal(http.StatusOK, w.Code)

	// Token in the query string
	w = do(t, mux, http.MethodGet, streamPath("c1", httphandler.EchoModel, "hi", url.Values{
		"token": []string{alice.AccessToken},
	}), nil, "")
	assert.Equal(http.StatusOK, w.Code)

	// A refresh token is not an access token
	w = do(t, mux, http.MethodGet, "/api/models", nil, alice.RefreshToken)
	assert.Equal(http.StatusUnauthorized, w.Code)

	// Admin only
	w = do(t, mux, http.MethodGet, "/api/admin/models", nil, alice.AccessToken)
	assert.Equal(http.StatusForbidden, w.Code)
	root := login(t, mux, "root", "toor")
	w = do(t, mux, http.MethodGet, "/api/admin/models", nil, root.AccessToken)
	assert.Equal(http.StatusOK, w.Code)

	// Claims
	claims, err := schema.TokenClaims(root.AccessToken)
	require.NoError(t, err)
	assert.Equal("root", claims.Subject)
	assert.Equal("aitemplate", claims.Issuer)
	assert.ElementsMatch([]string{httphandler.RoleAdmin, httphandler.RoleUser}, claims.Roles)
}

func Test_httphandler_010(t *testing.T) {
	// Refresh, logout, me and password
	assert := assert.New(t)
	_, mux := serveMux(t,
		httphandler.WithAuth(true),
		httphandler.WithUser("alice", "secret", httphandler.RoleUser),
	)
	alice := login(t, mux, "alice", "secret")

	w := do(t, mux, http.MethodGet, "/api/auth/me", nil, alice.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal("alice", decode[schema.UserInfo](t, w).Username)

	// Refresh takes the raw token as the body
	w = do(t, mux, http.MethodPost, "/api/auth/refresh", alice.RefreshToken, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	refreshed := decode[schema.LoginResponse](t, w)
	assert.NotEmpty(refreshed.AccessToken)

	// The used refresh token is revoked, as is an access token
	w = do(t, mux, http.MethodPost, "/api/auth/refresh", alice.RefreshToken, "")
	assert.Equal(http.StatusUnauthorized, w.Code)
	w = do(t, mux, http.MethodPost, "/api/auth/refresh", alice.AccessToken, "")
	assert.Equal(http.StatusUnauthorized, w.Code)

	// Password
	w = do(t, mux, http.MethodPut, "/api/auth/password", schema.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "new"}, refreshed.AccessToken)
	assert.Equal(http.StatusBadRequest, w.Code)
	w = do(t, mux, http.MethodPut, "/api/auth/password", schema.ChangePasswordRequest{OldPassword: "secret", NewPassword: "new"}, refreshed.AccessToken)
	assert.Equal(http.StatusOK, w.Code)
	login(t, mux, "alice", "new")

	// Logout revokes the access token
	w = do(t, mux, http.MethodPost, "/api/auth/logout", nil, refreshed.AccessToken)
	assert.Equal(http.StatusOK, w.Code)
	w = do(t, mux, http.MethodGet, "/api/auth/me", nil, refreshed.AccessToken)
	assert.Equal(http.StatusUnauthorized, w.Code)
}

func Test_httphandler_011(t *testing.T) {
	// Model administration
	assert := assert.New(t)
	_, mux := serveMux(t)

	w := do(t, mux, http.MethodPost, "/api/admin/models", schema.ModelUpsertRequest{
		ModelID:   "gpt-x",
		BaseURL:   "https://api.example.com/v1",
		APIKey:    "key",
		ModelName: "gpt-x-2025",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	info := decode[schema.ModelAdminInfo](t, w)
	assert.Equal("openai", info.Provider)
	assert.Equal(schema.SourceDynamic, info.Source)
	assert.True(info.Editable)
	assert.True(info.Enabled)
	assert.Equal(&schema.CapabilitySet{Chat: true, Tools: true, JSONMode: true}, info.Capabilities)

	// Missing fields
	w = do(t, mux, http.MethodPost, "/api/admin/models", schema.ModelUpsertRequest{ModelID: "gpt-y"}, "")
	assert.Equal(http.StatusBadRequest, w.Code)
	assert.Equal("INVALID_REQUEST", decode[schema.ApiError](t, w).ErrorCode)

	// Toggle off hides the model from the public list
	w = do(t, mux, http.MethodPatch, "/api/admin/models/gpt-x/toggle", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(schema.ModelToggleResponse{ModelID: "gpt-x", Enabled: false}, decode[schema.ModelToggleResponse](t, w))
	w = do(t, mux, http.MethodGet, "/api/models", nil, "")
	assert.Len(decode[[]schema.ModelInfo](t, w), 1)
	w = do(t, mux, http.MethodGet, "/api/admin/models", nil, "")
	assert.Len(decode[[]schema.ModelAdminInfo](t, w), 2)

	// Builtin models cannot be deleted
	w = do(t, mux, http.MethodDelete, "/api/admin/models?modelId="+httphandler.EchoModel, nil, "")
	assert.Equal(http.StatusBadRequest, w.Code)
	w = do(t, mux, http.MethodDelete, "/api/admin/models?modelId=gpt-x", nil, "")
	assert.Equal(http.StatusOK, w.Code)
	w = do(t, mux, http.MethodDelete, "/api/admin/models?modelId=gpt-x", nil, "")
	assert.Equal(http.StatusBadRequest, w.Code)
}

func Test_httphandler_012(t *testing.T) {
	// Skill administration
	assert := assert.New(t)
	_, mux := serveMux(t, httphandler.WithSkill("builtin", "1.0", "Be helpful"))

	w := do(t, mux, http.MethodPost, "/api/admin/skills", schema.SkillUpsertRequest{SkillName: "poet", Content: "Rhyme"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(schema.SkillInfo{SkillName: "poet", Version: "1.0.0", Source: schema.SourceDynamic, Editable: true}, decode[schema.SkillInfo](t, w))

	w = do(t, mux, http.MethodPost, "/api/admin/skills/import-sh", schema.SkillImportScriptRequest{
		Script: "# skills\nsummarise@2.0 Summarise the text\n\nbroken\ntranslate Translate to French\n",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	imported := decode[schema.SkillImportResponse](t, w)
	assert.Equal(2, imported.Imported)
	assert.Equal([]string{"summarise@2.0", "translate@1.0.0"}, imported.SkillNames)
	assert.Len(imported.Errors, 1)

	w = do(t, mux, http.MethodPost, "/api/admin/skills/import-source", schema.SkillImportSourceRequest{Source: "acme/skills@review"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal([]string{"review@1.0.0"}, decode[schema.SkillImportResponse](t, w).SkillNames)

	w = do(t, mux, http.MethodPost, "/api/admin/skills/import-source", schema.SkillImportSourceRequest{Source: "not a slug"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(decode[schema.SkillImportResponse](t, w).Imported)

	w = do(t, mux, http.MethodGet, "/api/skills", nil, "")
	assert.Len(decode[[]schema.SkillInfo](t, w), 5)

	// Only dynamic skills can be deleted
	w = do(t, mux, http.MethodDelete, "/api/admin/skills?skillName=builtin", nil, "")
	assert.Equal(http.StatusBadRequest, w.Code)
	w = do(t, mux, http.MethodDelete, "/api/admin/skills?skillName=summarise&version=2.0", nil, "")
	assert.Equal(http.StatusOK, w.Code)
	w = do(t, mux, http.MethodGet, "/api/admin/skills", nil, "")
	assert.Len(decode[[]schema.SkillInfo](t, w), 4)
}

func Test_httphandler_013(t *testing.T) {
	// Fixtures
	assert := assert.New(t)
	opt, err := httphandler.LoadFixture(strings.NewReader(`
auth: true
signingKey: test-key
models:
  - modelId: fixture-model
    provider: test
    capabilities:
      chat: true
      vision: true
tools:
  - toolName: search.web
    riskLevel: READ
    output: "results for %s"
skills:
  - skillName: tone
    version: "1"
    content: Be polite
users:
  - username: bob
    password: builder
    roles: [ADMIN]
`))
	require.NoError(t, err)
	b, mux := serveMux(t, opt)
	assert.True(b.AuthEnabled())

	bob := login(t, mux, "bob", "builder")
	w := do(t, mux, http.MethodGet, "/api/models", nil, bob.AccessToken)
	models := decode[[]schema.ModelInfo](t, w)
	if assert.Len(models, 2) {
		assert.Equal(&schema.CapabilitySet{Chat: true, Vision: true}, models[1].Capabilities)
		assert.Equal(schema.HealthUp, models[1].Health)
	}
	w = do(t, mux, http.MethodGet, "/api/skills", nil, bob.AccessToken)
	assert.Equal([]schema.SkillInfo{{SkillName: "tone", Version: "1", Source: schema.SourceBuiltin}}, decode[[]schema.SkillInfo](t, w))

	_, err = httphandler.LoadFixture(strings.NewReader("models: [not, a, model"))
	assert.Error(err)

	// An empty fixture is valid
	_, err = httphandler.LoadFixture(strings.NewReader(""))
	assert.NoError(err)
}
