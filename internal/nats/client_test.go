package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/capitalize-ai/modelchat/pkg/logger"
)

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(t.Context(), Config{URL: "nats://127.0.0.1:1"}, logger.NewNop())
	assert.ErrorContains(t, err, "failed to connect to NATS")
}

func TestConnect_BadTLSFiles(t *testing.T) {
	_, err := Connect(t.Context(), Config{
		URL:      "nats://127.0.0.1:1",
		CAFile:   "/nonexistent/ca.pem",
		CertFile: "/nonexistent/cert.pem",
		KeyFile:  "/nonexistent/key.pem",
	}, logger.NewNop())
	assert.ErrorContains(t, err, "failed to create TLS config")
}

func TestClient_NilConnection(t *testing.T) {
	c := &Client{}
	assert.False(t, c.IsConnected())
	c.Close()
}
