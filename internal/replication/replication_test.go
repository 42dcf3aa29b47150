package replication

import (
	"context"
	"net"
	"strings"
	"testing"

	"respd/internal/resp"
)

func TestNewPrimaryReplicationID(t *testing.T) {
	s, err := NewPrimary()
	if err != nil {
		t.Fatalf("NewPrimary: %v", err)
	}
	if len(s.ReplicationID) != 40 {
		t.Fatalf("ReplicationID length = %d, want 40", len(s.ReplicationID))
	}
	for _, c := range s.ReplicationID {
		if !strings.ContainsRune(replIDAlphabet, c) {
			t.Fatalf("ReplicationID contains non-alphanumeric rune %q", c)
		}
	}
}

func TestInfoReplicationPrimary(t *testing.T) {
	s, err := NewPrimary()
	if err != nil {
		t.Fatalf("NewPrimary: %v", err)
	}
	info := s.InfoReplication()

	if !strings.HasPrefix(info, "role:master") {
		t.Fatalf("info = %q, want prefix role:master", info)
	}
	if !strings.Contains(info, "master_replid:"+s.ReplicationID) {
		t.Fatalf("info = %q, missing master_replid", info)
	}
	if !strings.Contains(info, "master_repl_offset:0") {
		t.Fatalf("info = %q, missing master_repl_offset:0", info)
	}
}

func TestInfoReplicationReplica(t *testing.T) {
	s := NewReplica("127.0.0.1:6380")
	info := s.InfoReplication()
	if info != "role:slave" {
		t.Fatalf("info = %q, want role:slave", info)
	}
}

func TestHandshakeSendsSinglePing(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 512)
		n, _ := conn.Read(buf)
		received <- append([]byte(nil), buf[:n]...)
		conn.Write(resp.Encode(resp.NewSimpleString("PONG")))
	}()

	if err := Handshake(context.Background(), ln.Addr().String()); err != nil {
		t.Fatalf("Handshake: %v", err)
	}

	got := <-received
	want := resp.Encode(resp.NewArray([]resp.Value{resp.NewBulkString([]byte("PING"))}))
	if string(got) != string(want) {
		t.Fatalf("primary received %q, want %q", got, want)
	}
}
