package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalForPolicy(t *testing.T) {
	tests := []struct {
		policy PolicyID
		want   Signal
	}{
		{PolicyMomentumLong, SignalLong},
		{PolicyBreakoutLong, SignalLong},
		{PolicyMeanRevertLong, SignalLong},
		{PolicyMomentumShort, SignalShort},
		{PolicyBreakdownShort, SignalShort},
		{PolicyMeanRevertShort, SignalShort},
		{PolicyHold, SignalFlat},
		{PolicyRiskOff, SignalFlat},
		{"", SignalFlat},
		{"some_new_bandit_arm", SignalFlat},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SignalForPolicy(tt.policy), string(tt.policy))
	}
	assert.Len(t, KnownPolicies, 8)
}

func TestSignalSign(t *testing.T) {
	assert.Equal(t, 1.0, SignalLong.Sign())
	assert.Equal(t, -1.0, SignalShort.Sign())
	assert.Equal(t, 0.0, SignalFlat.Sign())
}

func TestRecordTransitionsNeverRegress(t *testing.T) {
	r := &ExecutionRecord{ID: "r1"}
	require.NoError(t, r.Transition(StatusPending))
	require.NoError(t, r.Transition(StatusFilled))

	for _, next := range []RecordStatus{StatusPending, StatusCancelled, StatusBlocked, StatusFilled} {
		assert.Error(t, r.Transition(next))
	}
	assert.Equal(t, StatusFilled, r.Status)
}

func TestUncertaintyWidth(t *testing.T) {
	f := VolatilityForecast{SigmaHAR: 0.03, SigmaGARCH: 0.025}
	assert.Equal(t, 0.03, f.UncertaintyWidth())
	f.SigmaGARCH = 0.04
	assert.Equal(t, 0.04, f.UncertaintyWidth())
}
