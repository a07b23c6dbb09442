package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunRejectsWhenClientNotDialed(t *testing.T) {
	var c *Client
	_, err := c.Run(context.Background(), RunRequest{Image: "alpine", Argv: []string{"true"}})
	require.ErrorIs(t, err, ErrExecutorMissing)
}
