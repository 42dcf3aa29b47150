// Package server implements the connection-oriented command
// dispatcher: accept a TCP listener, read/decode/dispatch/write for
// each client independently.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/time/rate"

	"respd/internal/config"
	"respd/internal/logger"
	"respd/internal/replication"
	"respd/internal/resp"
	"respd/internal/store"
)

const readChunkSize = 512

// Server holds everything a connection handler needs to serve a
// request: the shared key space, the server's read-only config, and
// its replication identity.
type Server struct {
	Store       *store.Store
	Config      *config.Config
	Replication replication.State

	// Now is overridable for tests; defaults to wall-clock time.
	Now func() int64

	// ReadLimit shapes each connection's inbound byte rate
	// Defaults to unlimited.
	ReadLimit rate.Limit
}

// New builds a Server ready to accept connections.
func New(st *store.Store, cfg *config.Config, repl replication.State) *Server {
	return &Server{
		Store:       st,
		Config:      cfg,
		Replication: repl,
		Now:         nowMillis,
		ReadLimit:   rate.Inf,
	}
}

func nowMillis() int64 { return time.Now().UnixMilli() }

// Listen binds addr ("host:port" or ":port") and returns the
// listener, leaving Serve to run the accept loop. Splitting these
// lets callers (tests, bootstrap) observe the bound address before
// blocking.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return ln, nil
}

// Serve accepts connections from ln until it is closed or ctx is
// done, serving each on its own goroutine. It returns nil when ln is
// closed as part of a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		go s.handleConnection(conn)
	}
}

// handleConnection drives one client end to end: accumulate bytes
// until a full RESP frame decodes, dispatch it, write the reply,
// repeat until EOF or a protocol/IO error. Replies within a
// connection are written in request order.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	limiter := rate.NewLimiter(s.ReadLimit, readChunkSize)
	var buf bytes.Buffer
	chunk := make([]byte, readChunkSize)

	for {
		value, err := s.decodeNext(&buf)
		if err == errNeedMoreData {
			n, readErr := s.readChunk(conn, chunk, limiter)
			if n > 0 {
				buf.Write(chunk[:n])
			}
			if readErr != nil {
				if readErr != io.EOF {
					logger.Debug("server: connection %s read error: %v", conn.RemoteAddr(), readErr)
				}
				return
			}
			continue
		}
		if err != nil {
			logger.Warn("server: connection %s protocol error: %v", conn.RemoteAddr(), err)
			return
		}

		reply, err := s.dispatch(value)
		if err != nil {
			logger.Warn("server: connection %s: %v", conn.RemoteAddr(), err)
			return
		}
		if _, err := conn.Write(resp.Encode(reply)); err != nil {
			logger.Debug("server: connection %s write error: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

var errNeedMoreData = errors.New("server: need more data")

// decodeNext attempts to decode exactly one RESP value from the front
// of buf, consuming it on success.
func (s *Server) decodeNext(buf *bytes.Buffer) (resp.Value, error) {
	if buf.Len() == 0 {
		return resp.Value{}, errNeedMoreData
	}
	value, consumed, err := resp.Decode(buf.Bytes(), 0)
	if err == resp.ErrIncomplete {
		return resp.Value{}, errNeedMoreData
	}
	if err != nil {
		return resp.Value{}, err
	}
	buf.Next(consumed)
	return value, nil
}

// readChunk blocks for up to readChunkSize bytes, shaped by limiter to
// shape inbound throughput.
func (s *Server) readChunk(conn net.Conn, chunk []byte, limiter *rate.Limiter) (int, error) {
	if err := limiter.WaitN(context.Background(), len(chunk)); err != nil {
		return 0, err
	}
	return conn.Read(chunk)
}
