// Copyright (C) KeelDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package keel

import (
	"github.com/sirupsen/logrus"

	"github.com/keeldb/keel-go-driver/event"
)

// ClientOptions contains options to configure a Client.
type ClientOptions struct {
	// SessionMonitor receives session lifecycle events.
	SessionMonitor *event.SessionMonitor

	// Logger receives diagnostics that are never surfaced as errors, such as
	// suppressed endSessions dispatch failures. Defaults to a discard logger.
	Logger logrus.FieldLogger
}

// Options creates a new ClientOptions instance.
func Options() *ClientOptions {
	return &ClientOptions{}
}

// SetSessionMonitor sets the session monitor.
func (o *ClientOptions) SetSessionMonitor(m *event.SessionMonitor) *ClientOptions {
	o.SessionMonitor = m
	return o
}

// SetLogger sets the logger.
func (o *ClientOptions) SetLogger(l logrus.FieldLogger) *ClientOptions {
	o.Logger = l
	return o
}

func mergeClientOptions(opts ...*ClientOptions) *ClientOptions {
	c := &ClientOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if opt.SessionMonitor != nil {
			c.SessionMonitor = opt.SessionMonitor
		}
		if opt.Logger != nil {
			c.Logger = opt.Logger
		}
	}

	return c
}
