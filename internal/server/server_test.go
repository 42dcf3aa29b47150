package server

import (
	"context"
	"net"
	"testing"
	"time"

	"respd/internal/config"
	"respd/internal/replication"
	"respd/internal/resp"
	"respd/internal/store"
)

// newTestServer starts a Server listening on an ephemeral loopback
// port and returns a dialer for it plus a teardown func.
func newTestServer(t *testing.T) (dial func() net.Conn, srv *Server) {
	t.Helper()

	st := store.New()
	cfg := &config.Config{Dir: "/tmp", DBFilename: "dump.rdb", Port: 0}
	repl, err := replication.NewPrimary()
	if err != nil {
		t.Fatalf("NewPrimary: %v", err)
	}
	s := New(st, cfg, repl)

	ln, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go s.Serve(ctx, ln)
	t.Cleanup(func() {
		cancel()
		ln.Close()
	})

	return func() net.Conn {
		conn, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		return conn
	}, s
}

// roundTrip sends req and decodes exactly one reply value.
func roundTrip(t *testing.T, conn net.Conn, req []byte) resp.Value {
	t.Helper()
	if _, err := conn.Write(req); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	v, _, err := resp.Decode(buf[:n], 0)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return v
}

func bulkArray(parts ...string) []byte {
	items := make([]resp.Value, len(parts))
	for i, p := range parts {
		items[i] = resp.NewBulkString([]byte(p))
	}
	return resp.Encode(resp.NewArray(items))
}

func TestScenarioPing(t *testing.T) {
	dial, _ := newTestServer(t)
	conn := dial()
	defer conn.Close()

	got := roundTrip(t, conn, bulkArray("PING"))
	if got.Kind != resp.BulkString || string(got.Bulk) != "PONG" {
		t.Fatalf("PING reply = %#v, want BulkString(PONG)", got)
	}
}

func TestScenarioEcho(t *testing.T) {
	dial, _ := newTestServer(t)
	conn := dial()
	defer conn.Close()

	got := roundTrip(t, conn, bulkArray("ECHO", "hello"))
	if got.Kind != resp.BulkString || string(got.Bulk) != "hello" {
		t.Fatalf("ECHO reply = %#v, want BulkString(hello)", got)
	}
}

func TestScenarioSetGet(t *testing.T) {
	dial, _ := newTestServer(t)
	conn := dial()
	defer conn.Close()

	setReply := roundTrip(t, conn, bulkArray("SET", "foo", "bar"))
	if setReply.Kind != resp.SimpleString || setReply.Str != "OK" {
		t.Fatalf("SET reply = %#v, want SimpleString(OK)", setReply)
	}

	getReply := roundTrip(t, conn, bulkArray("GET", "foo"))
	if getReply.Kind != resp.BulkString || string(getReply.Bulk) != "bar" {
		t.Fatalf("GET reply = %#v, want BulkString(bar)", getReply)
	}
}

func TestScenarioSetPXExpiry(t *testing.T) {
	dial, srv := newTestServer(t)
	conn := dial()
	defer conn.Close()

	var clock int64 = 1_000_000
	srv.Now = func() int64 { return clock }

	setReply := roundTrip(t, conn, bulkArray("SET", "k", "v", "PX", "100"))
	if setReply.Kind != resp.SimpleString || setReply.Str != "OK" {
		t.Fatalf("SET PX reply = %#v, want SimpleString(OK)", setReply)
	}

	clock += 50
	before := roundTrip(t, conn, bulkArray("GET", "k"))
	if before.Kind != resp.BulkString || string(before.Bulk) != "v" {
		t.Fatalf("GET before deadline = %#v, want BulkString(v)", before)
	}

	clock += 100
	after := roundTrip(t, conn, bulkArray("GET", "k"))
	if !after.IsNullBulk() {
		t.Fatalf("GET after deadline = %#v, want null bulk string", after)
	}
}

func TestScenarioConfigGetDir(t *testing.T) {
	dial, _ := newTestServer(t)
	conn := dial()
	defer conn.Close()

	got := roundTrip(t, conn, bulkArray("CONFIG", "GET", "dir"))
	if got.Kind != resp.Array || len(got.Items) != 2 {
		t.Fatalf("CONFIG GET dir reply = %#v, want a 2-element array", got)
	}
	if string(got.Items[0].Bulk) != "dir" || string(got.Items[1].Bulk) != "/tmp" {
		t.Fatalf("CONFIG GET dir reply = %v, want [dir /tmp]", got.Items)
	}
}

func TestScenarioInfoReplicationPrimary(t *testing.T) {
	dial, _ := newTestServer(t)
	conn := dial()
	defer conn.Close()

	got := roundTrip(t, conn, bulkArray("INFO", "REPLICATION"))
	if got.Kind != resp.BulkString {
		t.Fatalf("INFO REPLICATION reply kind = %v, want BulkString", got.Kind)
	}
	payload := string(got.Bulk)
	if len(payload) < len("role:master") || payload[:len("role:master")] != "role:master" {
		t.Fatalf("INFO REPLICATION payload = %q, want prefix role:master", payload)
	}
}

func TestScenarioHelloReportsProtocolTwo(t *testing.T) {
	dial, _ := newTestServer(t)
	conn := dial()
	defer conn.Close()

	got := roundTrip(t, conn, bulkArray("HELLO", "3"))
	if got.Kind != resp.Array || len(got.Items)%2 != 0 {
		t.Fatalf("HELLO reply = %#v, want an even-length array of pairs", got)
	}
	found := false
	for i := 0; i+1 < len(got.Items); i += 2 {
		if string(got.Items[i].Bulk) == "proto" {
			found = true
			if got.Items[i+1].Kind != resp.Integer || got.Items[i+1].Int != 2 {
				t.Fatalf("HELLO proto field = %#v, want Integer(2)", got.Items[i+1])
			}
		}
	}
	if !found {
		t.Fatalf("HELLO reply %v missing a proto field", got.Items)
	}
}

func TestScenarioClientSetinfoIsAccepted(t *testing.T) {
	dial, _ := newTestServer(t)
	conn := dial()
	defer conn.Close()

	got := roundTrip(t, conn, bulkArray("CLIENT", "SETINFO", "lib-name", "go-redis"))
	if got.Kind != resp.SimpleString || got.Str != "OK" {
		t.Fatalf("CLIENT SETINFO reply = %#v, want SimpleString(OK)", got)
	}
}

func TestUnknownCommandClosesConnection(t *testing.T) {
	dial, _ := newTestServer(t)
	conn := dial()
	defer conn.Close()

	if _, err := conn.Write(bulkArray("NOPE")); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	if err == nil && n > 0 {
		t.Fatalf("expected connection to close with no reply, got %d bytes", n)
	}
}

func TestKeysAfterSet(t *testing.T) {
	dial, _ := newTestServer(t)
	conn := dial()
	defer conn.Close()

	roundTrip(t, conn, bulkArray("SET", "a", "1"))
	roundTrip(t, conn, bulkArray("SET", "b", "2"))

	got := roundTrip(t, conn, bulkArray("KEYS", "*"))
	if got.Kind != resp.Array || len(got.Items) != 2 {
		t.Fatalf("KEYS * reply = %#v, want a 2-element array", got)
	}
}

func TestRequestLargerThanOneReadIsAccumulated(t *testing.T) {
	dial, _ := newTestServer(t)
	conn := dial()
	defer conn.Close()

	bigValue := make([]byte, 4096)
	for i := range bigValue {
		bigValue[i] = 'x'
	}
	req := bulkArray("SET", "big", string(bigValue))

	// Dribble the request out in small writes to force the server to
	// accumulate across multiple conn.Read calls.
	for i := 0; i < len(req); i += 200 {
		end := i + 200
		if end > len(req) {
			end = len(req)
		}
		if _, err := conn.Write(req[i:end]); err != nil {
			t.Fatalf("write chunk: %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	v, _, err := resp.Decode(buf[:n], 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Kind != resp.SimpleString || v.Str != "OK" {
		t.Fatalf("SET reply = %#v, want SimpleString(OK)", v)
	}
}
