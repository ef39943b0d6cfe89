package protocol

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aloshkarev/vsx-tidy/internal/span"
)

func TestReadEnvelopeClassifiesRequestsAndNotifications(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"ping","params":{}}` + "\n" +
		`{"jsonrpc":"2.0","method":"configChanged","params":{}}` + "\n"
	c := NewConn(strings.NewReader(input), io.Discard)

	env, _, err := c.ReadEnvelope()
	require.NoError(t, err)
	assert.True(t, env.IsRequest())
	assert.False(t, env.IsNotification())

	env, _, err = c.ReadEnvelope()
	require.NoError(t, err)
	assert.False(t, env.IsRequest())
	assert.True(t, env.IsNotification())

	_, _, err = c.ReadEnvelope()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadEnvelopeSkipsBlankLines(t *testing.T) {
	input := "\n   \n" + `{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n"
	c := NewConn(strings.NewReader(input), io.Discard)

	env, _, err := c.ReadEnvelope()
	require.NoError(t, err)
	assert.Equal(t, "ping", env.Method)
}

func TestReadEnvelopeReturnsRawLineOnParseError(t *testing.T) {
	c := NewConn(strings.NewReader("this is not json\n"), io.Discard)
	env, raw, err := c.ReadEnvelope()
	require.Error(t, err)
	assert.Nil(t, env)
	assert.Equal(t, "this is not json", string(raw))

	// The loop is expected to continue past the bad line.
	_, _, err = c.ReadEnvelope()
	assert.ErrorIs(t, err, io.EOF)
}

func TestNullIDIsNotARequest(t *testing.T) {
	c := NewConn(strings.NewReader(`{"jsonrpc":"2.0","id":null,"method":"ping"}`+"\n"), io.Discard)
	env, _, err := c.ReadEnvelope()
	require.NoError(t, err)
	assert.False(t, env.IsRequest())
}

func TestConcurrentWritesProduceWholeLines(t *testing.T) {
	var out bytes.Buffer
	c := NewConn(strings.NewReader(""), &out)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.WriteNotification(NewNotification("log", LogParams{Level: "info", Message: "m"})))
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 20)
	for _, line := range lines {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), "line should be a complete JSON value: %q", line)
	}
}

func TestRpcDiagnosticOmitsEmptyFixesAndCode(t *testing.T) {
	d := RpcDiagnostic{
		Range:    span.Range{Start: span.Position{Line: 2, Character: 4}, End: span.Position{Line: 2, Character: 5}},
		Severity: SeverityWarning,
		Message:  "x",
	}
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "fixes")
	assert.NotContains(t, string(raw), "code")

	d.Code = "chk"
	d.Fixes = []RpcFix{{Title: "t", Edits: []span.TextEdit{}}}
	raw, err = json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"code":"chk"`)
	assert.Contains(t, string(raw), `"fixes"`)
}

func TestErrorResponseCarriesServerErrorCode(t *testing.T) {
	resp := NewErrorResponse(json.RawMessage("7"), "boom")
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"code":-32000`)
	assert.Contains(t, string(raw), `"id":7`)
	assert.NotContains(t, string(raw), "result")
}
