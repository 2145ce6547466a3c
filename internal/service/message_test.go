package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/modelchat/internal/llm"
	"github.com/capitalize-ai/modelchat/internal/model"
	"github.com/capitalize-ai/modelchat/internal/storage"
	"github.com/capitalize-ai/modelchat/pkg/logger"
)

type fakeRouter struct {
	mu         sync.Mutex
	result     llm.Result
	configured map[string]bool
	calls      int
	seen       []model.Message

	// block, when set, holds SendMessage until closed.
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeRouter) SendMessage(_ context.Context, messages []model.Message, _ string) llm.Result {
	f.mu.Lock()
	f.calls++
	f.seen = messages
	block, entered := f.block, f.entered
	f.entered = nil
	f.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if block != nil {
		<-block
	}
	return f.result
}

func (f *fakeRouter) IsModelConfigured(modelID string) bool {
	if f.configured == nil {
		return true
	}
	return f.configured[modelID]
}

func newChat(t *testing.T, router *fakeRouter) *ChatService {
	t.Helper()
	return NewChatService(openStore(t, storage.NewMemoryStorage()), router, logger.NewNop())
}

func TestChatService_SendSuccess(t *testing.T) {
	router := &fakeRouter{result: llm.Succeeded("Hello!", json.RawMessage(`{"total_tokens":3}`))}
	chat := newChat(t, router)

	res, err := chat.Send(t.Context(), "Hi")
	require.NoError(t, err)

	assert.True(t, res.Result.Success)
	assert.Equal(t, "Hello!", res.Message.Content)
	assert.False(t, res.Message.IsError)
	assert.NotNil(t, res.Message.Timestamp)
	assert.JSONEq(t, `{"total_tokens":3}`, string(res.Message.Usage))

	msgs := chat.Store().CurrentMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "Hi", msgs[0].Content)
	assert.NotNil(t, msgs[0].Timestamp)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)

	require.Len(t, router.seen, 1, "router sees the history including the new user message")
	assert.Equal(t, "Hi", router.seen[0].Content)
	assert.False(t, chat.Store().IsLoading())
}

func TestChatService_SendFailureBecomesErrorMessage(t *testing.T) {
	router := &fakeRouter{result: llm.Failed(llm.KindProvider, "Incorrect API key provided")}
	chat := newChat(t, router)

	res, err := chat.Send(t.Context(), "Hi")
	require.NoError(t, err)

	assert.False(t, res.Result.Success)
	assert.Equal(t, "Error: Incorrect API key provided", res.Message.Content)
	assert.True(t, res.Message.IsError)
	assert.Nil(t, res.Message.Timestamp)
	assert.Equal(t, 2, chat.Store().MessageCount(model.DefaultModel))
}

func TestChatService_SendFailureWithoutText(t *testing.T) {
	chat := newChat(t, &fakeRouter{result: llm.Result{}})

	res, err := chat.Send(t.Context(), "Hi")
	require.NoError(t, err)

	assert.Equal(t, "An unexpected error occurred. Please try again.", res.Message.Content)
	assert.True(t, res.Message.IsError)
}

func TestChatService_SendValidation(t *testing.T) {
	router := &fakeRouter{result: llm.Succeeded("x", nil)}
	chat := newChat(t, router)

	for _, content := range []string{"", "   \n\t", strings.Repeat("a", MaxContentBytes+1), "bad \xff utf8"} {
		_, err := chat.Send(t.Context(), content)
		assert.ErrorIs(t, err, ErrInvalidContent)
	}

	assert.Zero(t, router.calls)
	assert.Empty(t, chat.Store().CurrentMessages())
}

func TestChatService_SendNotConfigured(t *testing.T) {
	router := &fakeRouter{configured: map[string]bool{}}
	chat := newChat(t, router)

	_, err := chat.Send(t.Context(), "Hi")

	assert.ErrorIs(t, err, ErrModelNotConfigured)
	assert.Zero(t, router.calls)
	assert.Empty(t, chat.Store().CurrentMessages())
	assert.False(t, chat.Store().IsLoading())
}

func TestChatService_SendUnknownModelReachesRouter(t *testing.T) {
	router := &fakeRouter{
		configured: map[string]bool{},
		result:     llm.Failed(llm.KindInvalidModel, "Invalid model selected"),
	}
	chat := newChat(t, router)
	chat.Store().SwitchModel("mystery")

	res, err := chat.Send(t.Context(), "Hi")
	require.NoError(t, err)

	assert.Equal(t, 1, router.calls)
	assert.Equal(t, "Error: Invalid model selected", res.Message.Content)
}

func TestChatService_SendWhileInFlight(t *testing.T) {
	router := &fakeRouter{
		result:  llm.Succeeded("done", nil),
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	chat := newChat(t, router)
	entered := router.entered

	done := make(chan error, 1)
	go func() {
		_, err := chat.Send(context.Background(), "first")
		done <- err
	}()
	<-entered

	assert.True(t, chat.Store().IsLoading())
	_, err := chat.Send(t.Context(), "second")
	assert.ErrorIs(t, err, ErrRequestInFlight)

	close(router.block)
	require.NoError(t, <-done)

	assert.False(t, chat.Store().IsLoading())
	assert.Equal(t, []string{"first", "done"}, contents(chat.Store().CurrentMessages()))
}

func TestChatService_ReplyLandsInOriginatingConversation(t *testing.T) {
	router := &fakeRouter{
		result:  llm.Succeeded("gpt answer", nil),
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	chat := newChat(t, router)
	entered := router.entered

	done := make(chan error, 1)
	go func() {
		_, err := chat.Send(context.Background(), "question")
		done <- err
	}()
	<-entered

	chat.Store().SwitchModel("llama2")
	close(router.block)
	require.NoError(t, <-done)

	assert.Empty(t, chat.Store().CurrentMessages())
	assert.Equal(t, []string{"question", "gpt answer"}, contents(chat.Store().Messages(model.DefaultModel)))
}

func TestChatService_Regenerate(t *testing.T) {
	router := &fakeRouter{result: llm.Succeeded("first answer", nil)}
	chat := newChat(t, router)

	_, err := chat.Send(t.Context(), "question")
	require.NoError(t, err)

	router.result = llm.Succeeded("second answer", nil)
	res, err := chat.Regenerate(t.Context())
	require.NoError(t, err)

	assert.Equal(t, "second answer", res.Message.Content)
	assert.Equal(t, []string{"question", "second answer"}, contents(chat.Store().CurrentMessages()))
	assert.Equal(t, []string{"question"}, contents(router.seen))
}

func TestChatService_RegenerateNothingToDo(t *testing.T) {
	chat := newChat(t, &fakeRouter{result: llm.Succeeded("x", nil)})
	ctx := t.Context()

	_, err := chat.Regenerate(ctx)
	assert.ErrorIs(t, err, ErrNothingToRegenerate)

	require.NoError(t, chat.Store().AddMessage(ctx, assistantMsg("a")))
	require.NoError(t, chat.Store().AddMessage(ctx, assistantMsg("b")))
	_, err = chat.Regenerate(ctx)
	assert.ErrorIs(t, err, ErrNothingToRegenerate)
}

func TestChatService_PersistenceErrorStillReturnsResult(t *testing.T) {
	backend := &failingStorage{Storage: storage.NewMemoryStorage(), failSet: true}
	s, err := OpenConversationStore(t.Context(), backend, "", "", logger.NewNop())
	require.NoError(t, err)
	chat := NewChatService(s, &fakeRouter{result: llm.Succeeded("ok", nil)}, logger.NewNop())

	res, err := chat.Send(t.Context(), "Hi")

	assert.ErrorIs(t, err, errBackend)
	require.NotNil(t, res)
	assert.Equal(t, "ok", res.Message.Content)
	assert.Equal(t, 2, s.MessageCount(model.DefaultModel))
}

func TestChatService_Models(t *testing.T) {
	router := &fakeRouter{configured: map[string]bool{"llama2": true}}
	chat := newChat(t, router)
	require.NoError(t, chat.Store().AddMessageTo(t.Context(), "llama2", userMsg("x")))

	resp := chat.Models()

	assert.Equal(t, model.DefaultModel, resp.CurrentModel)
	require.Len(t, resp.Models, len(model.Catalog()))
	for _, m := range resp.Models {
		assert.Equal(t, m.ID == "llama2", m.Configured, m.ID)
		assert.Equal(t, m.ID == model.DefaultModel, m.Current, m.ID)
		if m.ID == "llama2" {
			assert.Equal(t, 1, m.MessageCount)
		}
	}
}
