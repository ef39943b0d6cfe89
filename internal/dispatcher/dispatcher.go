// Package dispatcher drives the daemon's stdio read loop: classify
// each decoded line as a request or notification, route it to the
// supervisor, and write back a response or, for malformed lines,
// report and continue rather than terminate.
package dispatcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aloshkarev/vsx-tidy/internal/logging"
	"github.com/aloshkarev/vsx-tidy/internal/protocol"
	"github.com/aloshkarev/vsx-tidy/internal/settings"
	"github.com/aloshkarev/vsx-tidy/internal/supervisor"
)

// Dispatcher owns the request/notification method table for a single
// stdio session.
type Dispatcher struct {
	conn   *protocol.Conn
	sup    *supervisor.Supervisor
	logger logging.Logger
}

// New returns a Dispatcher reading/writing over conn and routing every
// call into sup.
func New(conn *protocol.Conn, sup *supervisor.Supervisor, logger logging.Logger) *Dispatcher {
	return &Dispatcher{conn: conn, sup: sup, logger: logger}
}

// Run reads envelopes until EOF or an unrecoverable I/O error,
// dispatching each one. It returns nil on a clean EOF.
func (d *Dispatcher) Run() error {
	for {
		env, raw, err := d.conn.ReadEnvelope()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if raw != nil {
				d.reportParseError(raw, err)
				continue
			}
			return err
		}
		d.handle(env)
	}
}

func (d *Dispatcher) reportParseError(raw []byte, err error) {
	d.logger.Warning("failed to parse JSON line {Raw}: {Error}", string(raw), err)
	_ = d.conn.WriteNotification(protocol.NewNotification("log", protocol.LogParams{
		Level:   "error",
		Message: fmt.Sprintf("Failed to parse JSON: %v", err),
	}))
}

func (d *Dispatcher) handle(env *protocol.Envelope) {
	switch {
	case env.IsRequest():
		d.logger.Debug("dispatching request {Method}", env.Method)
		result, err := d.dispatchRequest(env.Method, env.Params)
		if err != nil {
			_ = d.conn.WriteResponse(protocol.NewErrorResponse(env.ID, err.Error()))
			return
		}
		_ = d.conn.WriteResponse(protocol.NewResponse(env.ID, result))
	case env.IsNotification():
		d.logger.Debug("dispatching notification {Method}", env.Method)
		d.dispatchNotification(env.Method, env.Params)
	default:
		// Well-formed JSON that is neither a request nor a notification
		// (no method, or a method with a null id): not a malformed line
		// (it parsed), just not an RPC message we act on.
	}
}

func (d *Dispatcher) dispatchRequest(method string, params json.RawMessage) (any, error) {
	switch method {
	case "initialize":
		var p initializeParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid initialize params: %w", err)
		}
		return d.sup.Initialize(p.RootURI, p.Settings), nil

	case "shutdown":
		return struct{}{}, nil

	case "ping":
		return map[string]bool{"ok": true}, nil

	case "analyzeFile":
		var p analyzeFileParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid analyzeFile params: %w", err)
		}
		if p.FileURI == "" {
			return nil, fmt.Errorf("missing fileUri")
		}
		mode := p.Mode
		if mode == "" {
			mode = "full"
		}
		content := ""
		if p.FileContent != nil {
			content = *p.FileContent
		}
		return d.sup.AnalyzeFile(p.RunID, p.FileURI, mode, content, p.FileContent != nil)

	case "analyzeProject":
		var p analyzeProjectParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid analyzeProject params: %w", err)
		}
		mode := p.Mode
		if mode == "" {
			mode = "full"
		}
		incremental := true
		if p.Incremental != nil {
			incremental = *p.Incremental
		}
		d.sup.StartAnalyzeProject(p.RunID, mode, incremental, p.BatchSize, p.Files)
		return analyzeProjectResult{RunID: p.RunID}, nil

	case "cancel":
		var p cancelParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid cancel params: %w", err)
		}
		d.sup.Cancel(p.RunID)
		return struct{}{}, nil

	default:
		// Unknown methods are tolerated rather than rejected: a
		// lenient {} response keeps the daemon usable against a newer
		// client speaking methods it doesn't yet need.
		return struct{}{}, nil
	}
}

func (d *Dispatcher) dispatchNotification(method string, params json.RawMessage) {
	switch method {
	case "configChanged":
		var p configChangedParams
		if err := json.Unmarshal(params, &p); err != nil {
			d.logger.Warning("invalid configChanged params: {Error}", err)
			return
		}
		d.sup.ConfigChanged(p.Settings)
		_ = d.conn.WriteNotification(protocol.NewNotification("log", protocol.LogParams{
			Level: "info", Message: "Settings updated",
		}))
	default:
		// Unknown notifications are silently ignored: there is no
		// response channel on which to report them.
	}
}

type initializeParams struct {
	RootURI  string            `json:"rootUri"`
	Settings settings.Settings `json:"settings"`
}

type analyzeFileParams struct {
	RunID       string  `json:"runId"`
	FileURI     string  `json:"fileUri"`
	Mode        string  `json:"mode"`
	FileContent *string `json:"fileContent"`
}

type analyzeProjectParams struct {
	RunID       string   `json:"runId"`
	Mode        string   `json:"mode"`
	Incremental *bool    `json:"incremental"`
	BatchSize   int      `json:"batchSize"`
	Files       []string `json:"files"`
}

type analyzeProjectResult struct {
	RunID string `json:"runId"`
}

type cancelParams struct {
	RunID string `json:"runId"`
}

type configChangedParams struct {
	Settings settings.Settings `json:"settings"`
}
