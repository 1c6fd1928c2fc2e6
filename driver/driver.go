// Copyright (C) KeelDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package driver contains the session-aware command execution core. It
// decorates outgoing commands with session metadata, absorbs reply metadata
// back into sessions and the cluster clock, and dispatches the endSessions
// cleanup commands at client shutdown. Wire framing, transport, and server
// selection live behind the Deployment interface.
package driver

import (
	"context"

	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/keeldb/keel-go-driver/driver/description"
)

// Deployment is the set of servers that commands are executed against. Server
// discovery, selection, connection management, and wire message framing all
// live behind this interface.
type Deployment interface {
	// RoundTrip sends a single command document against the named database and
	// returns the server's reply document. A returned error indicates a
	// transport-level failure; server-side errors are reported inside the
	// reply document instead.
	RoundTrip(ctx context.Context, db string, cmd bsoncore.Document) (bsoncore.Document, error)

	// Description returns the deployment's current description.
	Description() description.Topology
}
