package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintResult(t *testing.T) {
	v := struct {
		JobID string `json:"job_id"`
		Files int    `json:"files_processed"`
	}{"abc", 2}

	t.Cleanup(func() { outputFormat = "yaml" })

	var buf bytes.Buffer
	outputFormat = "yaml"
	require.NoError(t, printResult(&buf, v))
	assert.Equal(t, "files_processed: 2\njob_id: abc\n", buf.String())

	buf.Reset()
	outputFormat = "json"
	require.NoError(t, printResult(&buf, v))
	assert.JSONEq(t, `{"job_id":"abc","files_processed":2}`, buf.String())

	outputFormat = "xml"
	assert.Error(t, printResult(&buf, v))
}

func TestTemplatesCommand(t *testing.T) {
	t.Cleanup(func() { outputFormat = "yaml" })

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"templates", "-o", "json"})
	require.NoError(t, rootCmd.Execute())

	var out []templateSummary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].ID)
	assert.NotEmpty(t, out[0].Sheets)
}
