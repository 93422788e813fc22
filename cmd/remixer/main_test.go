// File: cmd/remixer/main_test.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/remixer/cmd"
)

func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
	execute = cmd.Execute
}

func TestRun_ExitCodes(t *testing.T) {
	defer resetMocks()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"Success", nil, 0},
		{"Failure", errors.New("all download strategies failed"), 1},
		{"Interrupted", context.Canceled, 0},
		{"WrappedInterrupt", fmt.Errorf("run: %w", context.Canceled), 0},
		{"Deadline", context.DeadlineExceeded, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execute = func(context.Context) error { return tt.err }
			assert.Equal(t, tt.want, run(context.Background()))
		})
	}
}

// simulatePanic triggers handlePanic exactly as main's deferred call would.
func simulatePanic() {
	defer handlePanic()
	panic("boom")
}

func TestHandlePanic(t *testing.T) {
	defer resetMocks()

	t.Run("WritesPanicLog", func(t *testing.T) {
		var written []byte
		var path string
		osWriteFile = func(name string, data []byte, _ os.FileMode) error {
			path, written = name, data
			return nil
		}
		code := -1
		osExit = func(c int) { code = c }

		simulatePanic()

		assert.Equal(t, 1, code)
		assert.Equal(t, panicLogFile, path)
		require.NotEmpty(t, written)
		assert.Contains(t, string(written), "panic: boom")
		assert.Contains(t, string(written), "goroutine")
	})

	t.Run("LogWriteFails", func(t *testing.T) {
		osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only fs") }
		code := -1
		osExit = func(c int) { code = c }

		simulatePanic()

		assert.Equal(t, 1, code)
	})

	t.Run("NoPanic", func(t *testing.T) {
		osExit = func(int) { t.Fatal("exit must not be called without a panic") }
		func() {
			defer handlePanic()
		}()
	})
}
