package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/jllopis/a2apipe/pkg/errors"
	"github.com/jllopis/a2apipe/pkg/pipeline"
)

// Exit codes.
const (
	exitFailure    = 1
	exitBadRequest = 2
	exitStage      = 3
)

// cliError adds an operator hint to a failure.
type cliError struct {
	Code    errors.ErrorCode `json:"code"`
	Stage   string           `json:"stage,omitempty"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
}

func newCLIError(err error) cliError {
	out := cliError{
		Code:    errors.CodeOf(err),
		Message: err.Error(),
	}
	var stageErr *pipeline.StageError
	if stderrors.As(err, &stageErr) {
		out.Stage = stageErr.Stage.String()
	}
	out.Hint = hintFor(out.Code, out.Stage)
	return out
}

func hintFor(code errors.ErrorCode, stage string) string {
	agent := "the agent"
	if stage != "" {
		agent = "the " + stage + " agent"
	}
	switch code {
	case errors.CodeConnectivity:
		return fmt.Sprintf("check that %s is running (a2apipe serve-all) and the endpoint is correct", agent)
	case errors.CodeTimeout:
		return fmt.Sprintf("%s did not answer in time; check its logs and the model provider", agent)
	case errors.CodeUpstreamFailure:
		return "the model provider failed; check OPENAI_API_KEY and the model name"
	case errors.CodeBadRequest:
		return "check the dataset path and the request payload"
	case errors.CodeNoResponse:
		return fmt.Sprintf("%s returned no message; check its logs", agent)
	default:
		return ""
	}
}

func (e cliError) exitCode() int {
	switch {
	case e.Stage != "":
		return exitStage
	case e.Code == errors.CodeBadRequest:
		return exitBadRequest
	default:
		return exitFailure
	}
}

func (e cliError) print(w io.Writer, asJSON bool) {
	if asJSON {
		_ = json.NewEncoder(w).Encode(map[string]cliError{"error": e})
		return
	}
	if e.Stage != "" {
		fmt.Fprintf(w, "Error [%s] in %s stage: %s\n", e.Code, e.Stage, e.Message)
	} else {
		fmt.Fprintf(w, "Error [%s]: %s\n", e.Code, e.Message)
	}
	if e.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
	}
}

// fatal prints err with a hint and exits.
// report prints err for the operator and returns the exit code it maps to.
func report(w io.Writer, err error) int {
	ce := newCLIError(err)
	ce.print(w, false)
	return ce.exitCode()
}
