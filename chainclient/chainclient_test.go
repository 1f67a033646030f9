package chainclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDialRejectsUnreachableEndpoint(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Dial(ctx, HTTP, "http://127.0.0.1:1")
	assert.Error(t, err)
}

func TestCertifiedSelectorIsFourBytes(t *testing.T) {
	assert.Len(t, certifiedSelector, 4)
}
