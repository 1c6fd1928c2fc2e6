// Copyright (C) KeelDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package event contains the events emitted by the session subsystem so a
// host application or test harness can assert session-leak-free behavior.
package event

import "go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

// SessionStartedEvent represents an event generated when a client session is
// started, either explicitly by the application or implicitly to scope one
// operation.
type SessionStartedEvent struct {
	SessionID bsoncore.Document
	Implicit  bool
}

// SessionEndedEvent represents an event generated when a client session ends.
// Dirty reports whether the underlying server session was discarded instead of
// returned to the pool.
type SessionEndedEvent struct {
	SessionID bsoncore.Document
	Implicit  bool
	Dirty     bool
}

// SessionsDrainedEvent represents the event generated once at client shutdown
// after the idle session pool has been drained. BatchSizes holds the number of
// session identifiers in each dispatched endSessions command; it is empty when
// the pool was empty and nothing was sent.
type SessionsDrainedEvent struct {
	BatchSizes []int
}

// SessionMonitor is a monitor that is triggered for session lifecycle events.
// Callbacks are invoked synchronously from the goroutine that triggered the
// event; a nil callback disables that event.
type SessionMonitor struct {
	Started func(*SessionStartedEvent)
	Ended   func(*SessionEndedEvent)
	Drained func(*SessionsDrainedEvent)
}
