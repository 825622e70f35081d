package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAgentModeNormalizes(t *testing.T) {
	mode, err := ParseAgentMode("trading")
	require.NoError(t, err)
	assert.Equal(t, ModeTrading, mode)

	mode, err = ParseAgentMode("  Observation ")
	require.NoError(t, err)
	assert.Equal(t, ModeObservation, mode)

	mode, err = ParseAgentMode("REBALANCING")
	require.NoError(t, err)
	assert.Equal(t, ModeRebalancing, mode)
}

func TestParseAgentModeRejectsUnknown(t *testing.T) {
	_, err := ParseAgentMode("YOLO")
	require.Error(t, err)

	var invalidMode *InvalidModeError
	require.True(t, errors.As(err, &invalidMode))
	assert.Equal(t, "YOLO", invalidMode.Mode)
}

func TestParseAgentStatus(t *testing.T) {
	status, err := ParseAgentStatus("active")
	require.NoError(t, err)
	assert.Equal(t, AgentActive, status)

	_, err = ParseAgentStatus("dormant")
	assert.Error(t, err)
}

func TestParseTradeAction(t *testing.T) {
	action, err := ParseTradeAction("buy")
	require.NoError(t, err)
	assert.Equal(t, ActionBuy, action)

	action, err = ParseTradeAction("SELL")
	require.NoError(t, err)
	assert.Equal(t, ActionSell, action)

	_, err = ParseTradeAction("HOLD")
	assert.Error(t, err)
}

func TestSessionStatusTerminal(t *testing.T) {
	assert.False(t, SessionRunning.Terminal())
	assert.True(t, SessionCompleted.Terminal())
	assert.True(t, SessionFailed.Terminal())
	assert.True(t, SessionStopped.Terminal())
}

func TestIsTradeRejection(t *testing.T) {
	assert.True(t, IsTradeRejection(&InsufficientFundsError{Symbol: "AAPL", Required: 100, Available: 50}))
	assert.True(t, IsTradeRejection(&InsufficientHoldingsError{Symbol: "AAPL", Requested: 10, Held: 5}))
	assert.False(t, IsTradeRejection(errors.New("boom")))
	assert.False(t, IsTradeRejection(&AgentBusyError{AgentID: "a1"}))
}
