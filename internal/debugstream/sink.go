// Package debugstream adapts internal/hooks.Hooks to a gRPC
// server-streaming service so a remote debugger can watch variable
// declarations, calls, returns, exceptions, and single-step traps live.
// The sink is wired directly as a Go interface implementation rather
// than exposed as a script-level builtin.
//
// Each event crosses the wire as a dynamic protobuf message built against
// a descriptor this package constructs in NewSink with protoreflect —
// mirroring how Asteria's own Value is dynamically typed, there is no
// precompiled .proto/generated struct for DebugEvent.
package debugstream

import (
	"fmt"
	"net"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"

	"github.com/asteria-lang/asteria/internal/hooks"
	"github.com/asteria-lang/asteria/internal/value"
)

// serviceName and methodName identify the single server-streaming RPC a
// debugger client dials: asteria.debugstream.DebugStream/Events.
const (
	serviceName = "asteria.debugstream.DebugStream"
	methodName  = "Events"
)

// Sink implements hooks.Hooks, fanning every call out to every currently
// connected debugger stream. A Sink with no connected subscribers simply
// drops events on the floor; it never blocks the engine waiting for a
// reader.
type Sink struct {
	desc *desc.MessageDescriptor

	mu   sync.Mutex
	subs map[int]chan *dynamic.Message
	next int

	server *grpc.Server
}

// NewSink constructs a Sink and starts serving its gRPC endpoint on addr
// in the background. Call Close to stop the listener and disconnect any
// subscribers.
func NewSink(addr string) (*Sink, error) {
	md, err := eventDescriptor()
	if err != nil {
		return nil, fmt.Errorf("debugstream: building event descriptor: %w", err)
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("debugstream: listening on %s: %w", addr, err)
	}

	s := &Sink{
		desc: md,
		subs: make(map[int]chan *dynamic.Message),
	}

	s.server = grpc.NewServer()
	s.server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*any)(nil),
		Streams: []grpc.StreamDesc{
			{
				StreamName:    methodName,
				Handler:       s.handleEvents,
				ServerStreams: true,
			},
		},
	}, s)

	go func() {
		_ = s.server.Serve(lis)
	}()

	return s, nil
}

// Close stops accepting new subscribers and tears down every connection.
func (s *Sink) Close() {
	// Closing the subscriber channels first lets every handleEvents loop
	// return, so GracefulStop is not left waiting on open streams.
	s.mu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()

	s.server.GracefulStop()
}

// handleEvents is the grpc.StreamHandler backing the Events RPC: it
// registers a subscription and relays every event the Sink receives
// until the client disconnects or the stream errors out.
func (s *Sink) handleEvents(srv any, stream grpc.ServerStream) error {
	ch := make(chan *dynamic.Message, 64)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}()

	for msg := range ch {
		if err := stream.SendMsg(msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) broadcast(fields map[string]any) {
	msg := dynamic.NewMessage(s.desc)
	for name, v := range fields {
		fd := s.desc.FindFieldByName(name)
		if fd == nil {
			continue
		}
		msg.SetField(fd, v)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- msg:
		default:
			// a slow subscriber misses events rather than stalling the engine
		}
	}
}

func inspectOrEmpty(v value.Value) string {
	if v.IsNull() {
		return ""
	}
	return v.Inspect()
}

func (s *Sink) OnVariableDeclare(sloc hooks.SourceLoc, name string) {
	s.broadcast(map[string]any{
		"kind":   "declare",
		"file":   sloc.File,
		"line":   int32(sloc.Line),
		"column": int32(sloc.Column),
		"target": name,
	})
}

func (s *Sink) OnFunctionCall(sloc hooks.SourceLoc, target value.Value) {
	s.broadcast(map[string]any{
		"kind":   "call",
		"file":   sloc.File,
		"line":   int32(sloc.Line),
		"column": int32(sloc.Column),
		"target": inspectOrEmpty(target),
	})
}

func (s *Sink) OnFunctionReturn(sloc hooks.SourceLoc, target, result value.Value) {
	s.broadcast(map[string]any{
		"kind":   "return",
		"file":   sloc.File,
		"line":   int32(sloc.Line),
		"column": int32(sloc.Column),
		"target": inspectOrEmpty(target),
		"result": inspectOrEmpty(result),
	})
}

func (s *Sink) OnFunctionExcept(sloc hooks.SourceLoc, target value.Value, err error) {
	s.broadcast(map[string]any{
		"kind":   "except",
		"file":   sloc.File,
		"line":   int32(sloc.Line),
		"column": int32(sloc.Column),
		"target": inspectOrEmpty(target),
		"error":  err.Error(),
	})
}

func (s *Sink) OnSingleStepTrap(sloc hooks.SourceLoc) {
	s.broadcast(map[string]any{
		"kind":   "step",
		"file":   sloc.File,
		"line":   int32(sloc.Line),
		"column": int32(sloc.Column),
	})
}

var _ hooks.Hooks = (*Sink)(nil)
