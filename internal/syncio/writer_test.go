package syncio_test

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/chatsocket/internal/syncio"
)

func TestWriter_SerializesWrites(t *testing.T) {
	var mu sync.Mutex
	var buf bytes.Buffer
	w := syncio.Writer{Mu: &mu, W: &buf}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := w.Write([]byte("frame;"))
			assert.NoError(t, err)
			assert.Equal(t, 6, n)
		}()
	}
	wg.Wait()

	require.Equal(t, 50*6, buf.Len())
	assert.Equal(t, strings.Repeat("frame;", 50), buf.String())
}

func TestWriter_HoldsCallersLock(t *testing.T) {
	var mu sync.Mutex
	var buf bytes.Buffer
	w := syncio.Writer{Mu: &mu, W: &buf}

	mu.Lock()
	done := make(chan struct{})
	go func() {
		_, _ = w.Write([]byte("pong"))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("write went through while the lock was held")
	default:
	}
	mu.Unlock()
	<-done
	assert.Equal(t, "pong", buf.String())
}
