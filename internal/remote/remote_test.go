package remote

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dg-agenda/internal/config"
	"dg-agenda/internal/remote/grpcremote"
	"dg-agenda/internal/remote/parse"
)

func TestOpen(t *testing.T) {
	d, err := Open(&config.Client{Driver: "grpc", ServerAddr: "localhost:50051"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &grpcremote.Client{}, d)
	require.NoError(t, d.Close())

	d, err = Open(&config.Client{Driver: "parse", ParseAppID: "abc", ParseServerURL: "https://parseapi.back4app.com"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &parse.Client{}, d)

	_, err = Open(&config.Client{Driver: "parse"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = Open(&config.Client{Driver: "smoke-signals"}, zerolog.Nop())
	assert.Error(t, err)
}
