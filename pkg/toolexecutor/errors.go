package toolexecutor

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorKind classifies dispatcher failures
type ErrorKind string

const (
	KindResolution  ErrorKind = "resolution"
	KindValidation  ErrorKind = "validation"
	KindCredential  ErrorKind = "credential"
	KindUpstream    ErrorKind = "upstream"
	KindTransform   ErrorKind = "transform"
	KindPostProcess ErrorKind = "post_process"
	KindFileOutput  ErrorKind = "file_output"
	KindInternal    ErrorKind = "internal"
)

// Error is a classified dispatcher failure
type Error struct {
	Kind       ErrorKind
	ToolID     string
	Message    string
	Status     int
	StatusText string
	Details    interface{}
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind) + " error"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrToolNotFound is wrapped by resolution failures
var ErrToolNotFound = errors.New("tool not found")

func newError(kind ErrorKind, toolID, message string, err error) *Error {
	return &Error{Kind: kind, ToolID: toolID, Message: message, Err: err}
}

// KindOf returns the kind of a dispatcher error, or KindInternal
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// failureFromError folds any error into the message and output of a failed result
func failureFromError(err error) (string, interface{}) {
	var e *Error
	if errors.As(err, &e) {
		output := map[string]interface{}{}
		if e.Status != 0 {
			output["status"] = e.Status
		}
		if e.StatusText != "" {
			output["statusText"] = e.StatusText
		}
		if e.Details != nil {
			output["details"] = e.Details
		}
		return e.Error(), output
	}
	if err == nil {
		return "Unknown error", map[string]interface{}{}
	}
	return err.Error(), map[string]interface{}{}
}

// errorFromPanic converts a recovered value into an error. Values shaped like
// {status, message, cause} keep those fields.
func errorFromPanic(toolID string, v interface{}) *Error {
	switch val := v.(type) {
	case *Error:
		return val
	case error:
		return newError(KindInternal, toolID, val.Error(), val)
	case string:
		return newError(KindInternal, toolID, val, nil)
	case map[string]interface{}:
		e := newError(KindInternal, toolID, "", nil)
		if msg, ok := val["message"].(string); ok {
			e.Message = msg
		}
		if status, ok := val["status"].(int); ok {
			e.Status = status
		} else if status, ok := val["status"].(float64); ok {
			e.Status = int(status)
		}
		if cause, ok := val["cause"]; ok {
			if e.Message == "" {
				e.Message = fmt.Sprint(cause)
			}
			e.Details = map[string]interface{}{"cause": cause}
		}
		if e.Message == "" {
			data, _ := json.Marshal(val)
			e.Message = string(data)
		}
		return e
	default:
		return newError(KindInternal, toolID, fmt.Sprint(val), nil)
	}
}
