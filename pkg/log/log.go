// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	fileIndent  = 4  // spaces to indent file entries
	nameWidth   = 35 // Base width for filename
	typeWidth   = 10 // Width for file kind
	statusWidth = 15 // Width for status text
)

// 🎯 FileOperation represents the outcome of one file for logging
type FileOperation struct {
	Path      string // File path relative to the source root
	Kind      string // decode or copy
	Status    string // Short status text
	IsDecoded bool   // Decoded copy was written
	IsCopied  bool   // Copied verbatim
	IsSkipped bool   // Destination already existed
	IsFailed  bool   // Not decoded or not copied
}

// 📁 DirOperation represents one mirrored directory for logging
type DirOperation struct {
	Path        string // Directory relative to the source root
	Destination string // Mirrored destination directory
	Encoded     int    // Files to decode
	Plain       int    // Files to copy
}

// 📦 BatchOperation represents one upload batch for logging
type BatchOperation struct {
	Index int // 1-based batch number within the directory
	Total int // Number of batches in the directory
	Files int // Files in the batch
}

// 🎯 Logger handles structured logging with console output
type Logger struct {
	zlog       zerolog.Logger
	console    io.Writer
	mu         sync.Mutex
	currentDir *DirOperation
	operations []FileOperation
}

// 🏭 New creates a new logger that prints to console and mirrors every line to zlog
func New(console io.Writer, zlog zerolog.Logger) *Logger {
	return &Logger{
		zlog:    zlog,
		console: console,
		mu:      sync.Mutex{},
	}
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatFileOperation formats a file operation for display
func (l *Logger) formatFileOperation(op FileOperation) string {
	// Determine symbol and color
	var symbol rune
	var symbolColor color.Attribute
	switch {
	case op.IsFailed:
		symbol = '✗'
		symbolColor = color.FgRed
	case op.IsDecoded:
		symbol = '✓'
		symbolColor = color.FgGreen
	case op.IsCopied:
		symbol = '•'
		symbolColor = color.FgCyan
	default:
		symbol = '-'
		symbolColor = color.FgYellow
	}

	// Format kind with color
	var typeColor color.Attribute
	switch op.Kind {
	case "decode":
		typeColor = color.FgMagenta
	default:
		typeColor = color.FgBlue
	}

	// Build the line
	return fmt.Sprintf("%s%s %s %s %s",
		fmt.Sprintf("%*s", fileIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, op.Path),
		color.New(typeColor).Sprint(fmt.Sprintf("%-*s", typeWidth, op.Kind)),
		fmt.Sprintf("%-*s", statusWidth, op.Status))
}

// 📝 LogFileOperation logs a file operation
func (l *Logger) LogFileOperation(ctx context.Context, op FileOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Add to operations list
	l.operations = append(l.operations, op)

	// Format and print
	fmt.Fprintln(l.console, l.formatFileOperation(op))

	// Log to zerolog
	l.zlog.Debug().
		Str("file", op.Path).
		Str("kind", op.Kind).
		Str("status", op.Status).
		Bool("is_decoded", op.IsDecoded).
		Bool("is_copied", op.IsCopied).
		Bool("is_skipped", op.IsSkipped).
		Bool("is_failed", op.IsFailed).
		Msg("file operation")
}

// 📝 StartDirOperation starts a new directory
func (l *Logger) StartDirOperation(ctx context.Context, op DirOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentDir = &op
	l.operations = nil

	path := op.Path
	if path == "" {
		path = "."
	}

	// Print directory header
	fmt.Fprintf(l.console, "[decoding %s]\n",
		color.New(color.FgCyan).Sprint(op.Destination))

	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(path),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprintf("%d encoded, %d plain", op.Encoded, op.Plain))

	// Log to zerolog
	l.zlog.Debug().
		Str("dir", path).
		Str("destination", op.Destination).
		Int("encoded", op.Encoded).
		Int("plain", op.Plain).
		Msg("starting directory")
}

// 📝 StartBatch prints the batch header
func (l *Logger) StartBatch(ctx context.Context, op BatchOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.console, "  %s batch %d/%d %s\n",
		color.New(color.FgMagenta).Sprint("▸"),
		op.Index, op.Total,
		color.New(color.Faint).Sprintf("(%d files)", op.Files))

	l.zlog.Debug().
		Int("batch", op.Index).
		Int("batches", op.Total).
		Int("files", op.Files).
		Msg("starting batch")
}

// 📝 EndDirOperation ends the current directory
func (l *Logger) EndDirOperation(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentDir == nil {
		return
	}

	// Log summary
	l.zlog.Debug().
		Str("dir", l.currentDir.Path).
		Int("files", len(l.operations)).
		Msg("directory complete")

	l.currentDir = nil
	l.operations = nil
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("easy4us")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
