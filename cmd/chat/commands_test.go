package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/modelchat/internal/llm"
	"github.com/capitalize-ai/modelchat/internal/model"
	"github.com/capitalize-ai/modelchat/internal/service"
)

func TestPrintExchange(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var buf bytes.Buffer
		res := &service.SendResult{
			Message: model.NewMessage(model.RoleAssistant, "Hello"),
			Result:  llm.Succeeded("Hello", nil),
		}

		require.NoError(t, printExchange(&buf, res, nil))
		assert.Equal(t, "Hello\n", buf.String())
	})

	t.Run("provider failure", func(t *testing.T) {
		var buf bytes.Buffer
		res := &service.SendResult{
			Message: model.Message{Role: model.RoleAssistant, Content: "Error: bad key", IsError: true},
			Result:  llm.Failed(llm.KindProvider, "bad key"),
		}

		err := printExchange(&buf, res, nil)
		assert.EqualError(t, err, "bad key")
		assert.Empty(t, buf.String())
	})

	t.Run("provider failure not persisted", func(t *testing.T) {
		var buf bytes.Buffer
		res := &service.SendResult{
			Message: model.Message{Role: model.RoleAssistant, Content: "Error: bad key", IsError: true},
			Result:  llm.Failed(llm.KindProvider, "bad key"),
		}
		diskFull := errors.New("disk full")

		err := printExchange(&buf, res, diskFull)
		assert.ErrorIs(t, err, diskFull)
		assert.ErrorContains(t, err, "bad key")
		assert.Empty(t, buf.String())
	})

	t.Run("not configured", func(t *testing.T) {
		err := printExchange(&bytes.Buffer{}, nil, service.ErrModelNotConfigured)
		assert.ErrorIs(t, err, service.ErrModelNotConfigured)
	})

	t.Run("not persisted", func(t *testing.T) {
		var buf bytes.Buffer
		res := &service.SendResult{
			Message: model.NewMessage(model.RoleAssistant, "Hello"),
			Result:  llm.Succeeded("Hello", nil),
		}

		err := printExchange(&buf, res, errors.New("disk full"))
		assert.ErrorContains(t, err, "disk full")
		assert.Equal(t, "Hello\n", buf.String())
	})
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil)
	assert.Equal(t, "No messages yet.\n", buf.String())

	buf.Reset()
	printHistory(&buf, []model.Message{
		{Role: model.RoleUser, Content: "Hi"},
		{Role: model.RoleAssistant, Content: "Error: nope", IsError: true},
	})
	assert.Equal(t, "[user] Hi\n[assistant (error)] Error: nope\n", buf.String())
}

func TestPrintModels(t *testing.T) {
	var buf bytes.Buffer
	resp := model.ListModelsResponse{
		CurrentModel: "llama2",
		Models: []model.ModelStatus{
			{Descriptor: model.Descriptor{ID: "llama2", Name: "Local LLM", Provider: model.ProviderOllama}, Configured: true, MessageCount: 3, Current: true},
		},
	}

	require.NoError(t, printModels(&buf, resp))
	assert.Contains(t, buf.String(), "llama2")
	assert.Contains(t, buf.String(), "*")
	assert.Contains(t, buf.String(), "true")
}
