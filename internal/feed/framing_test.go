package feed

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tob/internal/itch"
	"tob/pkg/exception"
)

func TestSplitDatagram(t *testing.T) {
	add := itch.Encode(nil, itch.AddOrder{Header: itch.Header{Locate: 1}, OrderRef: 1, Side: 'B', Shares: 100, Price: 15000})
	del := itch.Encode(nil, itch.OrderDelete{Header: itch.Header{Locate: 1}, OrderRef: 1})

	var datagram []byte
	var err error
	datagram, err = AppendFrame(datagram, add)
	require.NoError(t, err)
	datagram, err = AppendFrame(datagram, del)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, byte(itch.AddOrderSize)}, datagram[:2])

	var got [][]byte
	require.NoError(t, SplitDatagram(datagram, func(msg []byte) error {
		got = append(got, msg)
		return nil
	}))
	require.Len(t, got, 2)
	assert.Equal(t, add, got[0])
	assert.Equal(t, del, got[1])
}

func TestSplitDatagramErrors(t *testing.T) {
	noop := func([]byte) error { return nil }
	require.ErrorIs(t, SplitDatagram([]byte{0}, noop), exception.ErrShortFrame)
	require.ErrorIs(t, SplitDatagram([]byte{0, 5, 1, 2}, noop), exception.ErrShortFrame)
	require.ErrorIs(t, SplitDatagram([]byte{0, 0}, noop), exception.ErrEmptyFrame)

	_, err := AppendFrame(nil, nil)
	require.ErrorIs(t, err, exception.ErrEmptyFrame)
	_, err = AppendFrame(nil, make([]byte, MaxFrameSize+1))
	require.ErrorIs(t, err, exception.ErrFrameLimit)
}

func TestReader(t *testing.T) {
	var stream []byte
	msgs := [][]byte{{'S', 1}, {'A', 2, 3}, bytes.Repeat([]byte{'P'}, 300)}
	for _, m := range msgs {
		var err error
		stream, err = AppendFrame(stream, m)
		require.NoError(t, err)
	}

	r := NewReader(bytes.NewReader(stream))
	for _, want := range msgs {
		got, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := r.Next()
	require.ErrorIs(t, err, io.EOF)

	r = NewReader(bytes.NewReader(stream[:len(stream)-1]))
	_, _ = r.Next()
	_, _ = r.Next()
	_, err = r.Next()
	require.ErrorIs(t, err, exception.ErrShortFrame)

	r = NewReader(bytes.NewReader([]byte{0}))
	_, err = r.Next()
	require.ErrorIs(t, err, exception.ErrShortFrame)
}

func TestBatcher(t *testing.T) {
	b := NewBatcher(0, 3)
	msg := []byte{'D', 1, 2, 3}

	var datagrams [][]byte
	for i := 0; i < 7; i++ {
		full, err := b.Add(msg)
		require.NoError(t, err)
		if full != nil {
			datagrams = append(datagrams, full)
		}
	}
	if last := b.Flush(); last != nil {
		datagrams = append(datagrams, last)
	}
	assert.Nil(t, b.Flush())

	require.Len(t, datagrams, 3)
	counts := []int{}
	for _, d := range datagrams {
		n := 0
		require.NoError(t, SplitDatagram(d, func([]byte) error { n++; return nil }))
		counts = append(counts, n)
	}
	assert.Equal(t, []int{3, 3, 1}, counts)

	small := NewBatcher(2*(HeaderSize+len(msg)), 100)
	full, err := small.Add(msg)
	require.NoError(t, err)
	assert.Nil(t, full)
	full, err = small.Add(msg)
	require.NoError(t, err)
	assert.Nil(t, full)
	full, err = small.Add(msg)
	require.NoError(t, err)
	assert.Len(t, full, 2*(HeaderSize+len(msg)))
}
