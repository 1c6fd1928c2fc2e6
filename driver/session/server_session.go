// Copyright (C) KeelDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package session

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/keeldb/keel-go-driver/driver/description"
)

// UUIDSubtype is the BSON binary subtype that a session identifier is encoded as.
const UUIDSubtype byte = 4

// Server is an open session with the server.
type Server struct {
	SessionID bsoncore.Document
	TxnNumber int64
	LastUsed  time.Time
	Dirty     bool
}

// expired returns whether or not the session has expired given a description
// of the deployment. A session is considered expired if it has less than 1
// minute left before becoming stale, or if the deployment has not advertised
// a session timeout at all.
func (ss *Server) expired(topoDesc topologyDescription) bool {
	// Sessions never expire against a load balancer because the driver cannot
	// observe the backing servers behind it.
	if topoDesc.kind == description.LoadBalanced {
		return false
	}

	if topoDesc.timeoutMinutes == 0 {
		return true
	}

	timeUnused := time.Since(ss.LastUsed).Minutes()
	return timeUnused > float64(topoDesc.timeoutMinutes-1)
}

// updateUseTime updates the session's last used time.
// Must be called whenever this session is used to send a command to the server.
func (ss *Server) updateUseTime() {
	ss.LastUsed = time.Now()
}

// MarkDirty marks the session as dirty. A dirty session is discarded rather
// than reused because its server-side state is unknown.
func (ss *Server) MarkDirty() {
	ss.Dirty = true
}

func newServerSession() (*Server, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}

	idDoc := bsoncore.BuildDocumentFromElements(nil,
		bsoncore.AppendBinaryElement(nil, "id", UUIDSubtype, id[:]))

	return &Server{
		SessionID: idDoc,
		LastUsed:  time.Now(),
	}, nil
}
