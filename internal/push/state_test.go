package push

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyDelay(t *testing.T) {
	p := DefaultPolicy
	want := []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
		30 * time.Second, 30 * time.Second,
	}
	for n, d := range want {
		assert.Equal(t, d, p.Delay(n), "attempt %d", n)
	}
	assert.Equal(t, 30*time.Second, p.Delay(100))
}

func TestTransitionReconnectSequence(t *testing.T) {
	p := DefaultPolicy
	m, effects := Transition(p, Machine{}, Connect{})
	require.Equal(t, Connecting, m.State)
	require.Equal(t, []Effect{Dial{}}, effects)

	var delays []time.Duration
	for {
		m, effects = Transition(p, m, Closed{Err: errors.New("refused")})
		if m.State == Disconnected {
			break
		}
		require.Equal(t, Reconnecting, m.State)
		retry, ok := effects[len(effects)-1].(ScheduleRetry)
		require.True(t, ok)
		delays = append(delays, retry.Delay)

		m, effects = Transition(p, m, RetryDue{})
		require.Equal(t, Connecting, m.State)
		require.Equal(t, []Effect{Dial{}}, effects)
	}

	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
	}, delays)
	assert.Equal(t, []Effect{CloseConn{}}, effects)
}

func TestTransitionOpenResetsAttempts(t *testing.T) {
	m := Machine{State: Connecting, Attempts: 3}
	m, effects := Transition(DefaultPolicy, m, Opened{})
	assert.Equal(t, Machine{State: Connected}, m)
	assert.Equal(t, []Effect{StartHeartbeat{}}, effects)

	m, effects = Transition(DefaultPolicy, m, Closed{})
	assert.Equal(t, Machine{State: Reconnecting, Attempts: 1}, m)
	assert.Equal(t, []Effect{StopHeartbeat{}, CloseConn{}, ScheduleRetry{Delay: time.Second}}, effects)
}

func TestTransitionDisconnect(t *testing.T) {
	tests := []struct {
		from    State
		effects []Effect
	}{
		{Connected, []Effect{StopHeartbeat{}, CloseConn{}}},
		{Connecting, []Effect{CloseConn{}}},
		{Reconnecting, []Effect{CancelRetry{}}},
		{Disconnected, nil},
	}
	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			m, effects := Transition(DefaultPolicy, Machine{State: tt.from, Attempts: 2}, Disconnect{})
			assert.Equal(t, Disconnected, m.State)
			assert.Equal(t, tt.effects, effects)
		})
	}
}

func TestTransitionIgnoresEventsOutOfState(t *testing.T) {
	tests := []struct {
		name string
		m    Machine
		ev   Event
	}{
		{"connect while connected", Machine{State: Connected}, Connect{}},
		{"opened while reconnecting", Machine{State: Reconnecting, Attempts: 1}, Opened{}},
		{"closed while disconnected", Machine{State: Disconnected}, Closed{}},
		{"closed while reconnecting", Machine{State: Reconnecting, Attempts: 2}, Closed{}},
		{"retry while connected", Machine{State: Connected}, RetryDue{}},
		{"nil event", Machine{State: Connected}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, effects := Transition(DefaultPolicy, tt.m, tt.ev)
			assert.Equal(t, tt.m, m)
			assert.Empty(t, effects)
		})
	}
}
