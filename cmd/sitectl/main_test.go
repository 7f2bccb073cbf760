package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sitegrid/sitegrid/internal/client"
	"github.com/sitegrid/sitegrid/internal/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestErrorMessage(t *testing.T) {
	require.Equal(t, "bad flag", errorMessage(errors.New("bad flag")))

	apiErr := &client.Error{Kind: client.KindExpired, Status: 410, Message: "This invitation has expired."}
	require.Equal(t, client.Message(apiErr), errorMessage(fmt.Errorf("accepting: %w", apiErr)))
}

func TestCreateClientOptions(t *testing.T) {
	cfg := config.Default()
	cfg.InsecureTLS = true
	options := createClientOptions(cfg, zap.NewNop().Sugar(), client.NewStaticCredentials("abc"))
	c, err := client.NewClient(cfg.ServiceURL, options...)
	require.NoError(t, err)
	require.NotNil(t, c)
}
