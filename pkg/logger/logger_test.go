package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLevel(t *testing.T) {
	l, err := New("warn")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	l, err = New("")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = New("loud")
	assert.Error(t, err)
}

func TestNamed(t *testing.T) {
	base, err := New("info")
	require.NoError(t, err)
	assert.Equal(t, "svc.checkin", Named(base, "svc.checkin").Name())

	nop := Named(nil, "svc.checkin")
	require.NotNil(t, nop)
	assert.False(t, nop.Core().Enabled(zapcore.ErrorLevel))
}

func TestMustPanicsOnError(t *testing.T) {
	assert.Panics(t, func() { Must(New("loud")) })
	assert.NotPanics(t, func() { Must(zap.NewNop(), nil) })
}
