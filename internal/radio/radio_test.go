package radio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddr(t *testing.T) {
	tests := []struct {
		input    string
		expected Addr
		hasError bool
	}{
		{"0x0013A200DEADBEEF", 0x0013A200DEADBEEF, false},
		{"0xffff", Broadcast, false},
		{"4660", 0x1234, false},
		{" 0x1234 ", 0x1234, false},
		{"", 0, true},
		{"mesh", 0, true},
		{"0x1ffffffffffffffff", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			addr, err := ParseAddr(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, addr)
		})
	}
}

func TestAddrString(t *testing.T) {
	assert.Equal(t, "ffff", Broadcast.String())
	assert.Equal(t, "13a200deadbeef", Addr(0x0013A200DEADBEEF).String())
	assert.True(t, Broadcast.IsBroadcast())
	assert.False(t, Addr(0x1234).IsBroadcast())

	text, err := Addr(0x1234).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1234", string(text))
}

func TestQueueTrySubmit(t *testing.T) {
	t.Run("full queue rejects without blocking", func(t *testing.T) {
		q := NewQueue(1)
		require.NoError(t, q.TrySubmit(TxJob{Dest: 1, Payload: []byte{1}}))

		err := q.TrySubmit(TxJob{Dest: 2, Payload: []byte{2}})
		assert.ErrorIs(t, err, ErrQueueFull)
		assert.Equal(t, 1, q.Len())

		job := <-q.Jobs()
		assert.Equal(t, Addr(1), job.Dest)
	})

	t.Run("closed queue reports consumer gone", func(t *testing.T) {
		q := NewQueue(4)
		q.Close()
		q.Close()

		err := q.TrySubmit(TxJob{Dest: 1})
		assert.ErrorIs(t, err, ErrQueueClosed)

		select {
		case <-q.Done():
		default:
			t.Fatal("done channel not closed")
		}
	})

	t.Run("closed queue stays closed with spare capacity", func(t *testing.T) {
		q := NewQueue(64)
		q.Close()

		for i := 0; i < 32; i++ {
			assert.ErrorIs(t, q.TrySubmit(TxJob{Dest: Addr(i)}), ErrQueueClosed)
		}
		assert.Equal(t, 0, q.Len())
	})

	t.Run("non-positive size uses default", func(t *testing.T) {
		q := NewQueue(0)
		assert.Equal(t, DefaultQueueSize, q.Cap())
	})

	t.Run("preserves submission order", func(t *testing.T) {
		q := NewQueue(3)
		for i := 1; i <= 3; i++ {
			require.NoError(t, q.TrySubmit(TxJob{Dest: Addr(i)}))
		}
		for i := 1; i <= 3; i++ {
			assert.Equal(t, Addr(i), (<-q.Jobs()).Dest)
		}
	})
}
