package debugstream

import (
	"testing"
	"time"

	"github.com/jhump/protoreflect/dynamic"

	"github.com/asteria-lang/asteria/internal/hooks"
	"github.com/asteria-lang/asteria/internal/value"
)

func TestEventDescriptorHasExpectedFields(t *testing.T) {
	md, err := eventDescriptor()
	if err != nil {
		t.Fatalf("eventDescriptor: %v", err)
	}
	for _, name := range []string{"kind", "file", "line", "column", "target", "result", "error"} {
		if md.FindFieldByName(name) == nil {
			t.Fatalf("DebugEvent missing field %q", name)
		}
	}
}

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	s, err := NewSink("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func (s *Sink) subscribe() (int, chan *dynamic.Message) {
	ch := make(chan *dynamic.Message, 8)
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()
	return id, ch
}

func recvOrTimeout(t *testing.T, ch chan *dynamic.Message) *dynamic.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a broadcast event")
		return nil
	}
}

func TestOnVariableDeclareBroadcastsToSubscribers(t *testing.T) {
	s := newTestSink(t)
	_, ch := s.subscribe()

	s.OnVariableDeclare(hooks.SourceLoc{File: "f.as", Line: 1, Column: 2}, "x")

	msg := recvOrTimeout(t, ch)
	kindFD := s.desc.FindFieldByName("kind")
	targetFD := s.desc.FindFieldByName("target")
	if msg.GetField(kindFD) != "declare" {
		t.Fatalf("kind = %v, want declare", msg.GetField(kindFD))
	}
	if msg.GetField(targetFD) != "x" {
		t.Fatalf("target = %v, want x", msg.GetField(targetFD))
	}
}

func TestOnFunctionExceptCarriesErrorText(t *testing.T) {
	s := newTestSink(t)
	_, ch := s.subscribe()

	s.OnFunctionExcept(hooks.SourceLoc{File: "f.as", Line: 5}, value.Str("fn"), errBoom{})

	msg := recvOrTimeout(t, ch)
	errFD := s.desc.FindFieldByName("error")
	if msg.GetField(errFD) != "boom" {
		t.Fatalf("error = %v, want boom", msg.GetField(errFD))
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func TestBroadcastWithNoSubscribersDoesNotBlock(t *testing.T) {
	s := newTestSink(t)
	s.OnSingleStepTrap(hooks.SourceLoc{File: "f.as", Line: 6})
}
