// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package log implements a small leveled logger on top of Go's
// standard log package. Passes log progress at DebugLevel; the
// standard logger is available as a package global. Nil Loggers ignore
// all messages, so library code can log unconditionally.
package log

import (
	"fmt"
	"log"
	"os"
)

// Level defines the level of logging. Higher levels are more verbose.
type Level int

const (
	// OffLevel turns logging off.
	OffLevel Level = iota
	// ErrorLevel outputs only error messages.
	ErrorLevel
	// InfoLevel is the standard level.
	InfoLevel
	// DebugLevel outputs detailed pass tracing.
	DebugLevel
)

// An Outputter receives published log messages. Go's *log.Logger
// implements Outputter.
type Outputter interface {
	Output(calldepth int, s string) error
}

// A Logger publishes messages at or below its level to its outputter.
type Logger struct {
	Outputter
	Level Level
}

// New creates a Logger publishing messages at or below level to out.
func New(out Outputter, level Level) *Logger {
	if level == OffLevel {
		return nil
	}
	return &Logger{Outputter: out, Level: level}
}

// At tells whether the logger is at or below the provided level.
func (l *Logger) At(level Level) bool {
	return l != nil && level <= l.Level
}

// Errorf publishes a formatted message at ErrorLevel.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.printf(ErrorLevel, format, args...)
}

// Printf publishes a formatted message at InfoLevel.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.printf(InfoLevel, format, args...)
}

// Debugf publishes a formatted message at DebugLevel.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.printf(DebugLevel, format, args...)
}

func (l *Logger) printf(level Level, format string, args ...interface{}) {
	if !l.At(level) {
		return
	}
	l.Output(3, fmt.Sprintf(format, args...))
}

// Std is the standard logger.
var Std = New(log.New(os.Stderr, "", log.LstdFlags), InfoLevel)

// Convenience functions publishing to the standard logger.
var (
	Errorf = Std.Errorf
	Printf = Std.Printf
	Debugf = Std.Debugf
)
