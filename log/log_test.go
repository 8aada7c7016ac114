// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package log

import "testing"

type capture struct {
	messages []string
}

func (c *capture) Output(calldepth int, s string) error {
	c.messages = append(c.messages, s)
	return nil
}

func TestNilLogger(t *testing.T) {
	var l *Logger
	l.Errorf("dropped")
	l.Printf("dropped")
	l.Debugf("dropped")
	if l.At(ErrorLevel) {
		t.Error("nil logger claims a level")
	}
}

func TestOffLevel(t *testing.T) {
	if New(new(capture), OffLevel) != nil {
		t.Error("got a logger at OffLevel, want nil")
	}
}

func TestLevelGating(t *testing.T) {
	out := new(capture)
	l := New(out, InfoLevel)
	l.Errorf("e %d", 1)
	l.Printf("i")
	l.Debugf("d")
	if got, want := len(out.messages), 2; got != want {
		t.Fatalf("got %v messages, want %v: %v", got, want, out.messages)
	}
	if out.messages[0] != "e 1" || out.messages[1] != "i" {
		t.Errorf("got %v", out.messages)
	}
}

func TestAt(t *testing.T) {
	l := New(new(capture), DebugLevel)
	if !l.At(DebugLevel) || !l.At(ErrorLevel) {
		t.Error("debug logger rejects lower levels")
	}
	le := New(new(capture), ErrorLevel)
	if le.At(InfoLevel) {
		t.Error("error logger accepts InfoLevel")
	}
}
