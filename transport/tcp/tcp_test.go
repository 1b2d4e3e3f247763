package tcp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnWriteReadFrameRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverDone := make(chan struct{})
	var serverErr error
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		if err != nil {
			serverErr = err
			return
		}
		defer conn.Close()

		magic := make([]byte, 1)
		if _, err := conn.Read(magic); err != nil {
			serverErr = err
			return
		}
		if magic[0] != intermediateMagic {
			serverErr = err
			return
		}

		buf := make([]byte, 4+5)
		if _, err := conn.Read(buf); err != nil {
			serverErr = err
			return
		}
		// echo the frame straight back
		if _, err := conn.Write(buf); err != nil {
			serverErr = err
		}
	}()

	c := New(ln.Addr().String())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Open(ctx))
	defer c.Close()

	require.NoError(t, c.WriteFrame(ctx, []byte("hello")))

	got, err := c.ReadFrame(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)

	<-serverDone
	require.NoError(t, serverErr)
}
