package mempool

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vrrb-chain/consensus-core/events"
	"github.com/vrrb-chain/consensus-core/primitives"
)

func txnOfSize(id string) Transaction {
	return Transaction{
		ID:              primitives.TxHashString(id),
		SenderAddress:   primitives.Address("sender"),
		ReceiverAddress: primitives.Address("receiver"),
		Amount:          1,
	}
}

func TestMempoolInsertVisibleThroughFreshHandle(t *testing.T) {
	mp := New(1<<20, nil, nil)
	_, err := mp.Insert(txnOfSize("t1"))
	require.NoError(t, err)

	handle := mp.ReadHandleFactory().Handle()
	_, ok := handle.Get("t1")
	require.True(t, ok)
}

func TestMempoolRejectsDuplicate(t *testing.T) {
	mp := New(1<<20, nil, nil)
	_, err := mp.Insert(txnOfSize("t1"))
	require.NoError(t, err)

	_, err = mp.Insert(txnOfSize("t1"))
	require.ErrorIs(t, err, ErrDuplicateTxn)
}

func TestMempoolBackpressureThresholdFiresOnce(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe(events.TopicTransactions, 64)

	one := sizeInBytes(txnOfSize("sizing-probe"))
	threshold := one * 5
	mp := New(threshold, bus, nil)

	const n = 15
	for i := 0; i < n; i++ {
		_, err := mp.Insert(txnOfSize(fmt.Sprintf("t%02d", i)))
		require.NoError(t, err)
	}

	var crossings int
drainLoop:
	for {
		select {
		case ev := <-sub:
			if ev.Kind == events.KindMempoolSizeThresholdReached {
				crossings++
			}
		default:
			break drainLoop
		}
	}
	require.Equal(t, 1, crossings)

	drained := mp.Drain(20)
	require.Len(t, drained, n)

	for i := 0; i < n; i++ {
		_, err := mp.Insert(txnOfSize(fmt.Sprintf("u%02d", i)))
		require.NoError(t, err)
	}

	crossings = 0
drainLoop2:
	for {
		select {
		case ev := <-sub:
			if ev.Kind == events.KindMempoolSizeThresholdReached {
				crossings++
			}
		default:
			break drainLoop2
		}
	}
	require.Equal(t, 1, crossings)
}

func TestMempoolDrainOrdersFIFOAndRemoves(t *testing.T) {
	mp := New(1<<20, nil, nil)
	for i := 0; i < 5; i++ {
		_, err := mp.Insert(txnOfSize(fmt.Sprintf("t%d", i)))
		require.NoError(t, err)
	}

	drained := mp.Drain(3)
	require.Len(t, drained, 3)
	require.Equal(t, primitives.TxHashString("t0"), drained[0].Txn.ID)
	require.Equal(t, primitives.TxHashString("t1"), drained[1].Txn.ID)
	require.Equal(t, primitives.TxHashString("t2"), drained[2].Txn.ID)

	handle := mp.ReadHandleFactory().Handle()
	require.Equal(t, 2, handle.Len())
}
