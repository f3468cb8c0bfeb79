package realtime

import (
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

func TestSendRacingCloseDoesNotPanic(t *testing.T) {
	for i := 0; i < 200; i++ {
		conn := NewConnection("user1", "doctor", "", nil)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 32; j++ {
				_ = conn.Send([]byte(`{"event":"chat:new-message"}`))
			}
		}()
		go func() {
			defer wg.Done()
			conn.Close(websocket.CloseNormalClosure, "")
		}()
		wg.Wait()
	}
}

func TestSendAfterCloseReturnsError(t *testing.T) {
	conn := NewConnection("user1", "doctor", "", nil)
	conn.Close(websocket.CloseNormalClosure, "")

	assert.Error(t, conn.Send([]byte("payload")))
}

func TestSendBufferOverflowClosesConnection(t *testing.T) {
	conn := NewConnection("user1", "doctor", "", nil)

	var err error
	for i := 0; i < cap(conn.send)+1; i++ {
		err = conn.Send([]byte("payload"))
	}
	assert.Error(t, err)
	assert.Error(t, conn.Send([]byte("payload")))
}

func TestCloseIsIdempotent(t *testing.T) {
	conn := NewConnection("user1", "doctor", "", nil)
	conn.Close(websocket.CloseNormalClosure, "")
	conn.Close(websocket.CloseNormalClosure, "")
}
