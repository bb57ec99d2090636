package channel

import (
	"testing"
	"time"

	"github.com/arloliu/go-sslchannel/logger"
	"github.com/stretchr/testify/require"
)

func TestConfig_Default(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConfig()
	require.NoError(err)
	require.True(cfg.AutoClose())
	require.Equal(100, cfg.HandshakeAttempts(true))
	require.Equal(10, cfg.HandshakeAttempts(false))
	require.Equal(10*time.Millisecond, cfg.HandshakeBackoff())
	require.Equal(logger.GetLogger(), cfg.Logger())
}

func TestConfig_Options(t *testing.T) {
	require := require.New(t)

	l := logger.NewMockLogger()
	cfg, err := NewConfig(
		WithAutoClose(false),
		WithBlockingHandshakeAttempts(5),
		WithNonBlockingHandshakeAttempts(2),
		WithHandshakeBackoff(0),
		WithLogger(l),
	)
	require.NoError(err)
	require.False(cfg.AutoClose())
	require.Equal(5, cfg.HandshakeAttempts(true))
	require.Equal(2, cfg.HandshakeAttempts(false))
	require.Zero(cfg.HandshakeBackoff())
	require.Same(l, cfg.Logger())
}

func TestConfig_InvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		option Option
	}{
		{name: "blocking attempts zero", option: WithBlockingHandshakeAttempts(0)},
		{name: "blocking attempts too large", option: WithBlockingHandshakeAttempts(MaxHandshakeAttempts + 1)},
		{name: "non-blocking attempts zero", option: WithNonBlockingHandshakeAttempts(0)},
		{name: "non-blocking attempts too large", option: WithNonBlockingHandshakeAttempts(MaxHandshakeAttempts + 1)},
		{name: "negative backoff", option: WithHandshakeBackoff(-time.Millisecond)},
		{name: "backoff too large", option: WithHandshakeBackoff(2 * time.Second)},
		{name: "nil logger", option: WithLogger(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.option)
			require.Error(t, err)
		})
	}
}

func TestConfig_NilConfig(t *testing.T) {
	require.ErrorIs(t, WithAutoClose(true).apply(nil), ErrConfigNil)
}
