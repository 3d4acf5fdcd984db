// Package jsonreq parses JSON documents and extracts required fields, failing
// with a *ValidationError that matches services.ErrValidation.
package jsonreq

import (
	"bytes"
	"encoding/json"
	"fmt"

	"packfetch/internal/services"
)

// ValidationError reports a document that does not have the expected shape.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is makes every ValidationError match services.ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == services.ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Object is a decoded JSON object whose values are left raw until requested.
type Object map[string]json.RawMessage

// RequireDocument parses data as a single JSON value.
func RequireDocument(data []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &ValidationError{Reason: "empty document"}
	}
	if !json.Valid(trimmed) {
		var parsed any
		err := json.Unmarshal(trimmed, &parsed)
		return nil, &ValidationError{Reason: "malformed document", Err: err}
	}
	return json.RawMessage(trimmed), nil
}

// RequireObject parses data and requires the top-level value to be an object.
func RequireObject(data []byte) (Object, error) {
	doc, err := RequireDocument(data)
	if err != nil {
		return nil, err
	}
	if doc[0] != '{' {
		return nil, &ValidationError{Reason: "document is not an object"}
	}
	var obj Object
	if err := json.Unmarshal(doc, &obj); err != nil {
		return nil, &ValidationError{Reason: "malformed object", Err: err}
	}
	return obj, nil
}

// Has reports whether key is present, including explicit nulls.
func (o Object) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// RequireString returns the string value at key.
func RequireString(obj Object, key string) (string, error) {
	raw, ok := obj[key]
	if !ok {
		return "", &ValidationError{Field: key, Reason: "missing required field"}
	}
	var value string
	if isNull(raw) {
		return "", &ValidationError{Field: key, Reason: "expected a string"}
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", &ValidationError{Field: key, Reason: "expected a string"}
	}
	return value, nil
}

// RequireInt returns the integer value at key.
func RequireInt(obj Object, key string) (int64, error) {
	raw, ok := obj[key]
	if !ok {
		return 0, &ValidationError{Field: key, Reason: "missing required field"}
	}
	var value int64
	if isNull(raw) {
		return 0, &ValidationError{Field: key, Reason: "expected an integer"}
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, &ValidationError{Field: key, Reason: "expected an integer"}
	}
	return value, nil
}

// isNull reports a JSON null, which json.Unmarshal accepts into any type
// without error.
func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
