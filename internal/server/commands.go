package server

import (
	"fmt"
	"strconv"
	"strings"

	"respd/internal/resp"
)

// dispatch interprets value as a request — either a single BulkString
// verb with no arguments, or an Array whose first element is the verb
// — and runs the matching handler. Verb matching is
// case-insensitive. An error here means the request was malformed in
// a way that must terminate the connection; handlers never produce a
// RESP error reply.
func (s *Server) dispatch(req resp.Value) (resp.Value, error) {
	args, err := requestArgs(req)
	if err != nil {
		return resp.Value{}, err
	}
	if len(args) == 0 {
		return resp.Value{}, fmt.Errorf("empty request")
	}

	verb := strings.ToUpper(string(args[0]))
	switch verb {
	case "PING":
		return s.cmdPing(args)
	case "ECHO":
		return s.cmdEcho(args)
	case "SET":
		return s.cmdSet(args)
	case "GET":
		return s.cmdGet(args)
	case "KEYS":
		return s.cmdKeys(args)
	case "CONFIG":
		return s.cmdConfig(args)
	case "INFO":
		return s.cmdInfo(args)
	case "COMMAND":
		return s.cmdCommand(args)
	case "REPLCONF":
		return s.cmdReplconf(args)
	case "HELLO":
		return s.cmdHello(args)
	case "CLIENT":
		return s.cmdClient(args)
	default:
		return resp.Value{}, fmt.Errorf("unknown command %q", verb)
	}
}

// requestArgs normalizes a request into its raw argument bytes: a
// lone BulkString is a single-argument request, an Array is the
// request's argument list in order. Any other shape is malformed.
func requestArgs(req resp.Value) ([][]byte, error) {
	switch req.Kind {
	case resp.BulkString:
		if req.IsNullBulk() {
			return nil, fmt.Errorf("null bulk string request")
		}
		return [][]byte{req.Bulk}, nil

	case resp.Array:
		if req.IsNullArray() || len(req.Items) == 0 {
			return nil, fmt.Errorf("empty or null array request")
		}
		args := make([][]byte, len(req.Items))
		for i, item := range req.Items {
			if item.Kind != resp.BulkString || item.IsNullBulk() {
				return nil, fmt.Errorf("request element %d is not a bulk string", i)
			}
			args[i] = item.Bulk
		}
		return args, nil

	default:
		return nil, fmt.Errorf("request must be a bulk string or array")
	}
}

func (s *Server) cmdPing(args [][]byte) (resp.Value, error) {
	if len(args) != 1 {
		return resp.Value{}, fmt.Errorf("PING takes no arguments")
	}
	return resp.NewBulkString([]byte("PONG")), nil
}

func (s *Server) cmdEcho(args [][]byte) (resp.Value, error) {
	if len(args) != 2 {
		return resp.Value{}, fmt.Errorf("ECHO requires exactly 1 argument")
	}
	return resp.NewBulkString(args[1]), nil
}

// cmdSet implements SET key value [PX millis]: exactly 3 or 5 array
// items and no other option keyword.
func (s *Server) cmdSet(args [][]byte) (resp.Value, error) {
	switch len(args) {
	case 3:
		s.Store.Set(string(args[1]), args[2], 0)
		return resp.NewSimpleString("OK"), nil

	case 5:
		if !strings.EqualFold(string(args[3]), "PX") {
			return resp.Value{}, fmt.Errorf("SET: unsupported option %q", args[3])
		}
		millis, err := strconv.ParseInt(string(args[4]), 10, 64)
		if err != nil {
			return resp.Value{}, fmt.Errorf("SET: PX argument must be an integer: %w", err)
		}
		s.Store.Set(string(args[1]), args[2], s.Now()+millis)
		return resp.NewSimpleString("OK"), nil

	default:
		return resp.Value{}, fmt.Errorf("SET requires 2 or 4 arguments, got %d", len(args)-1)
	}
}

func (s *Server) cmdGet(args [][]byte) (resp.Value, error) {
	if len(args) != 2 {
		return resp.Value{}, fmt.Errorf("GET requires exactly 1 argument")
	}
	v, ok := s.Store.Get(string(args[1]), s.Now())
	if !ok {
		return resp.NullBulkString(), nil
	}
	return resp.NewBulkString(v), nil
}

func (s *Server) cmdKeys(args [][]byte) (resp.Value, error) {
	if len(args) != 2 {
		return resp.Value{}, fmt.Errorf("KEYS requires exactly 1 argument")
	}
	keys := s.Store.Keys(string(args[1]), s.Now())
	items := make([]resp.Value, len(keys))
	for i, k := range keys {
		items[i] = resp.NewBulkString([]byte(k))
	}
	return resp.NewArray(items), nil
}

// cmdConfig implements CONFIG GET name for name in {dir, dbfilename}.
func (s *Server) cmdConfig(args [][]byte) (resp.Value, error) {
	if len(args) != 3 || !strings.EqualFold(string(args[1]), "GET") {
		return resp.Value{}, fmt.Errorf("CONFIG requires GET <name>")
	}
	name := string(args[2])
	var value string
	switch strings.ToLower(name) {
	case "dir":
		value = s.Config.Dir
	case "dbfilename":
		value = s.Config.DBFilename
	default:
		return resp.Value{}, fmt.Errorf("CONFIG GET: unsupported name %q", name)
	}
	return resp.NewArray([]resp.Value{
		resp.NewBulkString([]byte(name)),
		resp.NewBulkString([]byte(value)),
	}), nil
}

// cmdInfo implements INFO REPLICATION: a single BulkString whose
// payload is CRLF-separated key:value lines.
func (s *Server) cmdInfo(args [][]byte) (resp.Value, error) {
	if len(args) != 2 || !strings.EqualFold(string(args[1]), "REPLICATION") {
		return resp.Value{}, fmt.Errorf("INFO requires the REPLICATION section")
	}
	return resp.NewBulkString([]byte(s.Replication.InfoReplication())), nil
}

// cmdCommand answers the no-argument COMMAND probe several client
// libraries send right after connecting, with an empty array — wire
// compatibility only, no command introspection is implemented.
func (s *Server) cmdCommand(args [][]byte) (resp.Value, error) {
	return resp.NewArray([]resp.Value{}), nil
}

// cmdReplconf accepts any REPLCONF form and replies OK unconditionally.
// No replication state machine is implemented; this exists only so a
// client speaking slightly more of the handshake than raw PING is not
// disconnected.
func (s *Server) cmdReplconf(args [][]byte) (resp.Value, error) {
	return resp.NewSimpleString("OK"), nil
}

// cmdHello answers the RESP handshake real client libraries send
// before their first application command. This server only ever
// speaks RESP2 on the wire, so the reply always reports proto 2
// regardless of what the client asked for — client libraries fall
// back to RESP2 parsing the same way they do against any server that
// doesn't support RESP3, since a reply's type bytes are self
// describing.
func (s *Server) cmdHello(args [][]byte) (resp.Value, error) {
	return resp.NewArray([]resp.Value{
		resp.NewBulkString([]byte("server")),
		resp.NewBulkString([]byte("respd")),
		resp.NewBulkString([]byte("version")),
		resp.NewBulkString([]byte("7.4.0")),
		resp.NewBulkString([]byte("proto")),
		resp.NewInteger(2),
		resp.NewBulkString([]byte("id")),
		resp.NewInteger(1),
		resp.NewBulkString([]byte("mode")),
		resp.NewBulkString([]byte("standalone")),
		resp.NewBulkString([]byte("role")),
		resp.NewBulkString([]byte(s.Replication.Role.String())),
		resp.NewBulkString([]byte("modules")),
		resp.NewArray([]resp.Value{}),
	}), nil
}

// cmdClient accepts any CLIENT subcommand (SETINFO, SETNAME, ...) and
// replies OK unconditionally, the same no-op pattern as cmdReplconf —
// it exists only so go-redis/v9's post-connect CLIENT SETINFO call
// does not get treated as an unknown command.
func (s *Server) cmdClient(args [][]byte) (resp.Value, error) {
	return resp.NewSimpleString("OK"), nil
}
