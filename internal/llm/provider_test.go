package llm

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/modelchat/internal/model"
	"github.com/capitalize-ai/modelchat/pkg/logger"
)

func msgs(pairs ...string) []model.Message {
	out := make([]model.Message, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.Message{Role: model.Role(pairs[i]), Content: pairs[i+1]})
	}
	return out
}

// captureServer records the last request body and replies with status/body.
func captureServer(t *testing.T, status int, reply string, seen func(r *http.Request, body map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(raw, &body))
		if seen != nil {
			seen(r, body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuildOpenAIRequest(t *testing.T) {
	in := []model.Message{
		{Role: model.RoleSystem, Content: "S"},
		{Role: model.RoleUser, Content: "Hi", IsError: true, Usage: json.RawMessage(`{"x":1}`)},
	}

	req := buildOpenAIRequest("gpt-4", in)

	assert.Equal(t, "gpt-4", req.Model)
	assert.InDelta(t, 0.7, req.Temperature, 1e-6)
	assert.Equal(t, 2000, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "Hi", req.Messages[1].Content)
}

func TestOpenAIProvider_Send(t *testing.T) {
	var auth string
	srv := captureServer(t, http.StatusOK,
		`{"choices":[{"index":0,"message":{"role":"assistant","content":"Hello"}}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`,
		func(r *http.Request, body map[string]any) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			auth = r.Header.Get("Authorization")
			assert.Equal(t, "gpt-3.5-turbo", body["model"])
			assert.EqualValues(t, 2000, body["max_tokens"])
		})

	p := NewOpenAIProvider("sk-test", srv.URL)
	reply, err := p.Send(t.Context(), "gpt-3.5-turbo", msgs("user", "Hi"))
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "Hello", reply.Content)

	var usage map[string]any
	require.NoError(t, json.Unmarshal(reply.Usage, &usage))
	assert.EqualValues(t, 4, usage["total_tokens"])
}

func TestOpenAIProvider_APIError(t *testing.T) {
	srv := captureServer(t, http.StatusUnauthorized,
		`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`, nil)

	_, err := NewOpenAIProvider("bad", srv.URL).Send(t.Context(), "gpt-4", msgs("user", "Hi"))

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
	assert.Equal(t, "Incorrect API key provided", perr.Message)
}

func TestBuildAnthropicRequest(t *testing.T) {
	tests := []struct {
		name       string
		in         []model.Message
		wantSystem string
		wantRoles  []string
	}{
		{
			name:       "system lifted out",
			in:         msgs("system", "S", "user", "Hi"),
			wantSystem: "S",
			wantRoles:  []string{"user"},
		},
		{
			name:       "no system sends empty string",
			in:         msgs("user", "Hi", "assistant", "Hello", "user", "More"),
			wantSystem: "",
			wantRoles:  []string{"user", "assistant", "user"},
		},
		{
			name:       "only first system is used",
			in:         msgs("system", "A", "user", "Hi", "system", "B"),
			wantSystem: "A",
			wantRoles:  []string{"user"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := buildAnthropicRequest("claude-3-5-sonnet-20241022", tt.in)

			assert.Equal(t, 4096, req.MaxTokens)
			assert.Equal(t, tt.wantSystem, req.System)
			roles := make([]string, len(req.Messages))
			for i, m := range req.Messages {
				roles[i] = m.Role
			}
			assert.Equal(t, tt.wantRoles, roles)
		})
	}
}

func TestAnthropicProvider_Send(t *testing.T) {
	srv := captureServer(t, http.StatusOK,
		`{"content":[{"type":"text","text":"Bonjour"}],"usage":{"input_tokens":5,"output_tokens":2}}`,
		func(r *http.Request, body map[string]any) {
			assert.Equal(t, "/messages", r.URL.Path)
			assert.Equal(t, "key-a", r.Header.Get("x-api-key"))
			assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
			assert.Equal(t, "S", body["system"])
		})

	p := NewAnthropicProvider("key-a", srv.URL, "2023-06-01", logger.NewNop())
	reply, err := p.Send(t.Context(), "claude-3-5-sonnet-20241022", msgs("system", "S", "user", "Hi"))
	require.NoError(t, err)

	assert.Equal(t, "Bonjour", reply.Content)
	assert.JSONEq(t, `{"input_tokens":5,"output_tokens":2}`, string(reply.Usage))
}

func TestAnthropicProvider_ErrorWithoutMessage(t *testing.T) {
	srv := captureServer(t, http.StatusInternalServerError, `{}`, nil)

	_, err := NewAnthropicProvider("k", srv.URL, "2023-06-01", logger.NewNop()).
		Send(t.Context(), "claude-3-5-sonnet-20241022", msgs("user", "Hi"))

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusInternalServerError, perr.StatusCode)
	assert.Empty(t, perr.Message)
	assert.Equal(t, "Request failed with status code 500", err.Error())
}

func TestRouter_HTTPErrorWithoutMessageUsesStatusText(t *testing.T) {
	srv := captureServer(t, http.StatusBadGateway, `<html><body>Bad Gateway</body></html>`, nil)

	r := NewRouter(logger.NewNop(), NewAnthropicProvider("k", srv.URL, "2023-06-01", logger.NewNop()))
	res := r.SendMessage(t.Context(), msgs("user", "Hi"), "claude-3-5-sonnet-20241022")

	assert.False(t, res.Success)
	assert.Equal(t, KindProvider, res.Kind)
	assert.Equal(t, "Request failed with status code 502", res.Error)
}

func TestParseAnthropicResponse_NoContent(t *testing.T) {
	_, err := parseAnthropicResponse([]byte(`{"content":[]}`))
	assert.Error(t, err)
}

func TestBuildGoogleRequest(t *testing.T) {
	req := buildGoogleRequest(msgs("system", "S", "user", "Hi", "assistant", "Hello"))

	raw, err := json.Marshal(req)
	require.NoError(t, err)

	var body struct {
		Contents []struct {
			Role  string `json:"role"`
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
		GenerationConfig map[string]any `json:"generationConfig"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))

	require.Len(t, body.Contents, 2)
	assert.Equal(t, "user", body.Contents[0].Role)
	assert.Equal(t, "Hi", body.Contents[0].Parts[0].Text)
	assert.Equal(t, "model", body.Contents[1].Role)
	assert.Equal(t, "Hello", body.Contents[1].Parts[0].Text)
	assert.InDelta(t, 0.7, body.GenerationConfig["temperature"], 1e-6)
	assert.EqualValues(t, 2048, body.GenerationConfig["maxOutputTokens"])
}

func TestBuildGoogleRequest_EmptyContentKeepsText(t *testing.T) {
	raw, err := json.Marshal(buildGoogleRequest(msgs("user", "")))
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"contents":[{"role":"user","parts":[{"text":""}]}],"generationConfig":{"temperature":0.7,"maxOutputTokens":2048}}`,
		string(raw))
}

func TestGoogleProvider_Send(t *testing.T) {
	srv := captureServer(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hola"}]}}],"usageMetadata":{"totalTokenCount":7}}`,
		func(r *http.Request, _ map[string]any) {
			assert.Equal(t, "/models/gemini-1.5-pro:generateContent", r.URL.Path)
			assert.Equal(t, "g-key", r.URL.Query().Get("key"))
		})

	p := NewGoogleProvider("g-key", srv.URL, logger.NewNop())
	reply, err := p.Send(t.Context(), "gemini-1.5-pro", msgs("user", "Hi"))
	require.NoError(t, err)

	assert.Equal(t, "Hola", reply.Content)
	assert.JSONEq(t, `{"totalTokenCount":7}`, string(reply.Usage))
}

func TestParseGoogleResponse_Malformed(t *testing.T) {
	for _, body := range []string{
		`{}`,
		`{"candidates":[]}`,
		`{"candidates":[{"content":{"parts":[]}}]}`,
		`not json`,
	} {
		_, err := parseGoogleResponse([]byte(body))
		assert.Error(t, err, body)
	}
}

func TestBuildOllamaPrompt(t *testing.T) {
	tests := []struct {
		name string
		in   []model.Message
		want string
	}{
		{"single user", msgs("user", "Hi"), "User: Hi\nAssistant:"},
		{"turns", msgs("user", "Hi", "assistant", "Hello", "user", "Bye"), "User: Hi\nAssistant: Hello\nUser: Bye\nAssistant:"},
		{"system", msgs("system", "Be brief", "user", "Hi"), "Assistant: Be brief\nUser: Hi\nAssistant:"},
		{"empty", nil, "\nAssistant:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildOllamaPrompt(tt.in))
		})
	}
}

func TestOllamaProvider_Send(t *testing.T) {
	srv := captureServer(t, http.StatusOK, `{"model":"llama2","response":"Hey","done":true}`,
		func(r *http.Request, body map[string]any) {
			assert.Equal(t, "/api/generate", r.URL.Path)
			assert.Equal(t, "llama2", body["model"])
			assert.Equal(t, false, body["stream"])
			assert.Equal(t, "User: Hi\nAssistant:", body["prompt"])
		})

	reply, err := NewOllamaProvider(srv.URL, logger.NewNop()).Send(t.Context(), "llama2", msgs("user", "Hi"))
	require.NoError(t, err)

	assert.Equal(t, "Hey", reply.Content)
	assert.Nil(t, reply.Usage)
}

func TestOllamaProvider_Errors(t *testing.T) {
	t.Run("error string", func(t *testing.T) {
		srv := captureServer(t, http.StatusNotFound, `{"error":"model 'llama2' not found"}`, nil)

		_, err := NewOllamaProvider(srv.URL, logger.NewNop()).Send(t.Context(), "llama2", msgs("user", "Hi"))

		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "model 'llama2' not found", perr.Message)
	})

	t.Run("missing response field", func(t *testing.T) {
		srv := captureServer(t, http.StatusOK, `{"done":true}`, nil)

		_, err := NewOllamaProvider(srv.URL, logger.NewNop()).Send(t.Context(), "llama2", msgs("user", "Hi"))
		assert.ErrorContains(t, err, "missing response field")
	})

	t.Run("empty response is valid", func(t *testing.T) {
		srv := captureServer(t, http.StatusOK, `{"response":""}`, nil)

		reply, err := NewOllamaProvider(srv.URL, logger.NewNop()).Send(t.Context(), "llama2", msgs("user", "Hi"))
		require.NoError(t, err)
		assert.Equal(t, "", reply.Content)
	})
}

func TestAPIErrorMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"error":{"message":"bad key","type":"auth"}}`, "bad key"},
		{`{"error":"model not found"}`, "model not found"},
		{`{"error":{}}`, ""},
		{`{}`, ""},
		{`<html>`, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, apiErrorMessage([]byte(tt.body)), tt.body)
	}
}

func TestProviderError_Error(t *testing.T) {
	assert.Equal(t, "boom", (&ProviderError{StatusCode: 500, Message: "boom"}).Error())
	assert.Equal(t, "Request failed with status code 502", (&ProviderError{StatusCode: 502}).Error())
}
