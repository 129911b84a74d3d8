// Package syncio holds io helpers shared by the client and server sockets.
package syncio

import (
	"io"
	"sync"
)

// Writer serializes writes to W under Mu, so control replies written by a
// reader never interleave with data frames written elsewhere.
type Writer struct {
	Mu *sync.Mutex
	W  io.Writer
}

func (l Writer) Write(p []byte) (int, error) {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	return l.W.Write(p)
}
