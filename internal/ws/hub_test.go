package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	fail     bool
	closed   bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.messages = append(c.messages, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func TestHub_NotifyBroadcasts(t *testing.T) {
	h := NewHub(nil)
	go h.Run()
	defer h.Stop()

	good, bad := &fakeConn{}, &fakeConn{fail: true}
	h.Add(good)
	h.Add(bad)

	h.Notify("transaction_update", "transaction_created", map[string]interface{}{"transaction_code": "TXN1"})

	require.Eventually(t, func() bool { return good.received() == 1 }, time.Second, 5*time.Millisecond)

	var msg map[string]interface{}
	good.mu.Lock()
	require.NoError(t, json.Unmarshal(good.messages[0], &msg))
	good.mu.Unlock()
	assert.Equal(t, "transaction_update", msg["type"])
	assert.Equal(t, "transaction_created", msg["action"])
	assert.Equal(t, "TXN1", msg["transaction_code"])

	require.Eventually(t, func() bool {
		bad.mu.Lock()
		defer bad.mu.Unlock()
		return bad.closed
	}, time.Second, 5*time.Millisecond)
}

func TestHub_NotifyNeverBlocks(t *testing.T) {
	h := NewHub(nil) // not running, nothing drains the queue

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			h.Notify("stock_update", "stock_changed", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
	assert.Len(t, h.Broadcast, broadcastBuffer)
}

func TestHub_AddAndRemoveAfterStopDoNotBlock(t *testing.T) {
	h := NewHub(nil)
	go h.Run()

	open := &fakeConn{}
	h.Add(open)
	h.Stop()
	h.Stop()

	late := &fakeConn{}
	done := make(chan struct{})
	go func() {
		h.Remove(open)
		h.Add(late)
		h.Remove(late)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub blocked after Stop")
	}
	require.Eventually(t, func() bool {
		late.mu.Lock()
		defer late.mu.Unlock()
		return late.closed
	}, time.Second, 5*time.Millisecond)
}
