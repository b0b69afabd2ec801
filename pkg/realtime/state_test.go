package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionState_Lifecycle(t *testing.T) {
	now := time.Now()
	var st ConnectionState
	assert.Equal(t, Idle, st.Phase)

	st, err := st.Connect("u1")
	require.NoError(t, err)
	assert.Equal(t, Connecting, st.Phase)
	assert.Equal(t, "u1", st.UserID)

	st, err = st.Failed(3, now)
	require.NoError(t, err)
	assert.Equal(t, Connecting, st.Phase)
	assert.Equal(t, 1, st.RetryCount)

	st, err = st.Opened()
	require.NoError(t, err)
	assert.Equal(t, Open, st.Phase)
	assert.Equal(t, 0, st.RetryCount)
	assert.Equal(t, now, st.LastError)

	st = st.Reset()
	assert.Equal(t, ConnectionState{Phase: Idle}, st)
}

func TestConnectionState_RetryBudget(t *testing.T) {
	st, err := ConnectionState{}.Connect("u1")
	require.NoError(t, err)

	for i := 1; i < 3; i++ {
		st, err = st.Failed(3, time.Now())
		require.NoError(t, err)
		assert.Equal(t, Connecting, st.Phase)
		assert.Equal(t, i, st.RetryCount)
	}

	st, err = st.Failed(3, time.Now())
	require.NoError(t, err)
	assert.Equal(t, PermanentlyFailed, st.Phase)
	assert.Equal(t, 3, st.RetryCount)
	assert.False(t, st.Active())

	_, err = st.Failed(3, time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConnectionState_AuthFailed(t *testing.T) {
	st, _ := ConnectionState{}.Connect("u1")

	st, err := st.AuthFailed(time.Now())
	require.NoError(t, err)
	assert.Equal(t, PermanentlyFailed, st.Phase)
	assert.Equal(t, 0, st.RetryCount)
	assert.Equal(t, "u1", st.UserID)
}

func TestConnectionState_ConnectFromPermanentlyFailed(t *testing.T) {
	st := ConnectionState{Phase: PermanentlyFailed, UserID: "u1", RetryCount: 3}

	st, err := st.Connect("u2")
	require.NoError(t, err)
	assert.Equal(t, ConnectionState{Phase: Connecting, UserID: "u2"}, st)
}

func TestConnectionState_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		run  func() error
	}{
		{"connect while connecting", func() error {
			_, err := ConnectionState{Phase: Connecting}.Connect("u")
			return err
		}},
		{"connect while open", func() error {
			_, err := ConnectionState{Phase: Open}.Connect("u")
			return err
		}},
		{"connect when closed", func() error {
			_, err := ConnectionState{Phase: Closed}.Connect("u")
			return err
		}},
		{"open from idle", func() error {
			_, err := ConnectionState{}.Opened()
			return err
		}},
		{"fail from idle", func() error {
			_, err := ConnectionState{}.Failed(3, time.Now())
			return err
		}},
		{"auth fail from closed", func() error {
			_, err := ConnectionState{Phase: Closed}.AuthFailed(time.Now())
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), ErrInvalidTransition)
		})
	}
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "permanently-failed", PermanentlyFailed.String())
	assert.Equal(t, "phase(42)", Phase(42).String())
}

func TestExponentialDelay(t *testing.T) {
	d := ExponentialDelay(100*time.Millisecond, time.Second)
	assert.Equal(t, 100*time.Millisecond, d(1))
	assert.Equal(t, 200*time.Millisecond, d(2))
	assert.Equal(t, 400*time.Millisecond, d(3))
	assert.Equal(t, time.Second, d(10))
	assert.Equal(t, time.Duration(0), ExponentialDelay(0, time.Second)(3))
}
