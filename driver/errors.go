// Copyright (C) KeelDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// NetworkError is the label attached to errors caused by a transport-level
// fault rather than an error document returned by the server.
const NetworkError = "NetworkError"

// ErrDeploymentRequired is returned when an Operation is executed without a
// Deployment.
var ErrDeploymentRequired = errors.New("an Operation must have a Deployment set before Execute can be called")

// Error is a command execution error, either returned by the server as an
// error document or detected locally.
type Error struct {
	Code    int32
	Message string
	Name    string
	Labels  []string
	Wrapped error
}

// Error implements the error interface.
func (e Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("(%v) %v", e.Name, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e Error) Unwrap() error {
	return e.Wrapped
}

// HasErrorLabel returns true if the error contains the specified label.
func (e Error) HasErrorLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// IsNetworkError returns true if err carries the NetworkError label.
func IsNetworkError(err error) bool {
	var de Error
	if errors.As(err, &de) {
		return de.HasErrorLabel(NetworkError)
	}
	return false
}

// extractError returns the error represented by a server reply document, or
// nil if the reply reports success.
func extractError(rdr bsoncore.Document) error {
	var errmsg, codeName string
	var code int32
	var labels []string
	var ok bool

	elems, err := rdr.Elements()
	if err != nil {
		return err
	}

	for _, elem := range elems {
		switch elem.Key() {
		case "ok":
			switch elem.Value().Type {
			case bsontype.Int32:
				if elem.Value().Int32() == 1 {
					ok = true
				}
			case bsontype.Int64:
				if elem.Value().Int64() == 1 {
					ok = true
				}
			case bsontype.Double:
				if elem.Value().Double() == 1 {
					ok = true
				}
			}
		case "errmsg":
			if str, okay := elem.Value().StringValueOK(); okay {
				errmsg = str
			}
		case "codeName":
			if str, okay := elem.Value().StringValueOK(); okay {
				codeName = str
			}
		case "code":
			if c, okay := elem.Value().Int32OK(); okay {
				code = c
			}
		case "errorLabels":
			if arr, okay := elem.Value().ArrayOK(); okay {
				arrVals, err := arr.Values()
				if err != nil {
					continue
				}
				for _, arrVal := range arrVals {
					if str, ok := arrVal.StringValueOK(); ok {
						labels = append(labels, str)
					}
				}
			}
		}
	}

	if ok {
		return nil
	}

	if errmsg == "" {
		errmsg = "command failed"
	}

	return Error{
		Code:    code,
		Message: errmsg,
		Name:    codeName,
		Labels:  labels,
	}
}
