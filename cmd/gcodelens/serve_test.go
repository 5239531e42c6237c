package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommand_Exists(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"serve"})
	assert.NoError(t, err)
	assert.NotNil(t, cmd)
	assert.Equal(t, "serve", cmd.Name())
}

func TestServeCommand_Integration(t *testing.T) {
	pr, pw := io.Pipe()
	out := &bytes.Buffer{}

	testCmd := &cobra.Command{
		Use:  "serve",
		RunE: runServe,
	}
	testCmd.SetIn(pr)
	testCmd.SetOut(out)
	testCmd.SetErr(io.Discard)

	done := make(chan error, 1)
	go func() {
		done <- testCmd.Execute()
	}()

	_, err := pw.Write([]byte(`{"type":"parse","payload":{"content":"G0X0Y0\nG1X10Y5","batchId":7}}` + "\n"))
	require.NoError(t, err)
	_, err = pw.Write([]byte(`{"type":"close","payload":{}}` + "\n"))
	require.NoError(t, err)
	pw.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(20 * time.Second):
		t.Fatal("command did not exit in time")
	}

	var seen []string
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		var msg struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &msg))
		seen = append(seen, msg.Type)
	}
	require.NotEmpty(t, seen)
	assert.Equal(t, "ready", seen[0])
	assert.Contains(t, seen, "result")
}
