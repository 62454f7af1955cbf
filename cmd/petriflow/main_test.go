package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderJSON = `
{
  "id": "order",
  "conditions": [
    { "id": "in", "kind": "input" },
    { "id": "out", "kind": "output" }
  ],
  "tasks": [
    { "id": "check", "split": "xor" },
    { "id": "approve", "decomposition": "approval", "decompositionType": "net" },
    { "id": "ship", "join": "xor", "decomposition": "clerk" }
  ],
  "flows": [
    { "from": "in", "to": "check" },
    { "from": "check", "to": "approve", "guard": "amount > 100", "ordering": 1 },
    { "from": "check", "to": "ship", "default": true, "ordering": 2 },
    { "from": "approve", "to": "ship" },
    { "from": "ship", "to": "out" }
  ]
}
`

const approvalJSON = `
{
  "id": "approval",
  "conditions": [
    { "id": "in", "kind": "input" },
    { "id": "out", "kind": "output" }
  ],
  "tasks": [
    { "id": "review", "decomposition": "manager" }
  ],
  "flows": [
    { "from": "in", "to": "review" },
    { "from": "review", "to": "out" }
  ]
}
`

func writeNet(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	runData, runOutput, runVerbose, runMaxTurns = "", "", false, 1000
	envFile = ".env"
	rootCmd.PersistentFlags().Lookup("env").Changed = false

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunDefaultPath(t *testing.T) {
	order := writeNet(t, "order.json", orderJSON)

	out, err := execute(t, "run", order, "--data", `{"amount": 20}`, "--output", `{"shipped": true}`)
	require.NoError(t, err)

	result := &RunResult{}
	require.NoError(t, json.Unmarshal([]byte(out), result))
	assert.Equal(t, "Completed", result.Status)
	assert.Equal(t, 1, result.Items)
	assert.Equal(t, true, result.Data["shipped"])
	assert.Len(t, result.Fired, 2)
}

func TestRunWithSubnet(t *testing.T) {
	order := writeNet(t, "order.json", orderJSON)
	approval := writeNet(t, "approval.json", approvalJSON)

	out, err := execute(t, "run", order, approval, "--data", `{"amount": 500}`, "--output", `{"ok": true}`)
	require.NoError(t, err)

	result := &RunResult{}
	require.NoError(t, json.Unmarshal([]byte(out), result))
	assert.Equal(t, "Completed", result.Status)
	assert.Equal(t, 500.0, result.Data["amount"])
	assert.Equal(t, true, result.Data["ok"])
	assert.Equal(t, 2, result.Items, "review item and ship item, the approval item is executed by the sub-net")
	assert.Len(t, result.Fired, 4)
}

func TestRunErrors(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	order := writeNet(t, "order.json", orderJSON)
	_, err = execute(t, "run", order, "--data", `not json`)
	assert.Error(t, err)

	_, err = execute(t, "run", order, "--env", filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err, "an explicit env file must exist")
}

func TestAnalyze(t *testing.T) {
	approval := writeNet(t, "approval.json", approvalJSON)

	out, err := execute(t, "analyze", approval)
	require.NoError(t, err)
	assert.Contains(t, out, "net:         approval")
	assert.Contains(t, out, "transitions: review")
	assert.Contains(t, out, "exact:       true")
	assert.Contains(t, out, "unbalanced:  none")
}

func TestAnalyzeFileURI(t *testing.T) {
	approval := writeNet(t, "approval.json", approvalJSON)

	out, err := execute(t, "analyze", "file://"+approval)
	require.NoError(t, err)
	assert.Contains(t, out, "net:         approval")
}
