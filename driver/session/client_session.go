// Copyright (C) KeelDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package session

import (
	"errors"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// ErrSessionEnded is returned when a client session is used after a call to
// EndSession.
var ErrSessionEnded = errors.New("ended session was used")

// ErrSnapshotInvalidOptions is returned when a session is started with both
// causal consistency and snapshot reads enabled.
var ErrSnapshotInvalidOptions = errors.New("causal consistency and snapshot reads cannot both be enabled on a session")

// Type describes the type of the session.
type Type uint8

// These constants are the valid types for a client session.
const (
	// Explicit sessions are created directly by the application and ended by
	// the application.
	Explicit Type = iota
	// Implicit sessions are checked out by the driver to scope exactly one
	// operation and are ended as soon as that operation completes.
	Implicit
)

// Client is a session for clients to run commands. A Client must not be used
// by two operations concurrently; that restriction is enforced by the caller,
// so the struct itself carries no lock.
type Client struct {
	ClusterTime   bson.Raw
	OperationTime *primitive.Timestamp
	SessionID     bsoncore.Document
	SessionType   Type
	ClientID      uuid.UUID
	Consistent    bool
	Snapshot      bool
	SnapshotTime  *primitive.Timestamp
	Terminated    bool

	pool          *Pool
	serverSession *Server
}

func getClusterTime(clusterTime bson.Raw) (uint32, uint32) {
	if clusterTime == nil {
		return 0, 0
	}

	clusterTimeVal, err := clusterTime.LookupErr("$clusterTime")
	if err != nil {
		return 0, 0
	}

	timestampVal, err := bson.Raw(clusterTimeVal.Value).LookupErr("clusterTime")
	if err != nil {
		return 0, 0
	}

	t, i, ok := timestampVal.TimestampOK()
	if !ok {
		return 0, 0
	}

	return t, i
}

// MaxClusterTime compares 2 clusterTime documents and returns the document
// representing the highest cluster time.
func MaxClusterTime(ct1, ct2 bson.Raw) bson.Raw {
	epoch1, ord1 := getClusterTime(ct1)
	epoch2, ord2 := getClusterTime(ct2)

	switch {
	case epoch1 > epoch2:
		return ct1
	case epoch1 < epoch2:
		return ct2
	case ord1 > ord2:
		return ct1
	case ord1 < ord2:
		return ct2
	}

	return ct1
}

// NewClientSession creates a Client, checking a server session out of the
// provided pool. clientID identifies the owning client so that a session
// cannot be used through a client that did not create it.
func NewClientSession(pool *Pool, clientID uuid.UUID, sessionType Type, opts ...*ClientOptions) (*Client, error) {
	mergedOpts := mergeClientOptions(opts...)

	c := &Client{
		SessionType: sessionType,
		ClientID:    clientID,
		pool:        pool,
	}

	if mergedOpts.Snapshot != nil && mergedOpts.CausalConsistency != nil &&
		*mergedOpts.Snapshot && *mergedOpts.CausalConsistency {
		return nil, ErrSnapshotInvalidOptions
	}
	if mergedOpts.Snapshot != nil {
		c.Snapshot = *mergedOpts.Snapshot
	}
	// Causal consistency defaults to true unless the session is a snapshot
	// session or the caller disabled it.
	c.Consistent = !c.Snapshot
	if mergedOpts.CausalConsistency != nil {
		c.Consistent = *mergedOpts.CausalConsistency
	}

	servSess, err := pool.GetSession()
	if err != nil {
		return nil, err
	}

	c.SessionID = servSess.SessionID
	c.serverSession = servSess

	return c, nil
}

// AdvanceClusterTime updates the session's cluster time, keeping the highest
// value observed so far.
func (c *Client) AdvanceClusterTime(clusterTime bson.Raw) error {
	if c.Terminated {
		return ErrSessionEnded
	}
	c.ClusterTime = MaxClusterTime(c.ClusterTime, clusterTime)
	return nil
}

// AdvanceOperationTime updates the session's operation time if the new value
// is strictly greater than the stored one.
func (c *Client) AdvanceOperationTime(opTime *primitive.Timestamp) error {
	if c.Terminated {
		return ErrSessionEnded
	}
	if opTime == nil {
		return nil
	}

	if c.OperationTime == nil || primitive.CompareTimestamp(*opTime, *c.OperationTime) > 0 {
		c.OperationTime = &primitive.Timestamp{
			T: opTime.T,
			I: opTime.I,
		}
	}

	return nil
}

// UpdateSnapshotTime pins the session's read timestamp from the first reply
// observed through a snapshot session. Later replies do not move it.
func (c *Client) UpdateSnapshotTime(response bsoncore.Document) {
	if c == nil || !c.Snapshot || c.SnapshotTime != nil {
		return
	}

	subDoc := response
	if cursor, ok := response.Lookup("cursor").DocumentOK(); ok {
		subDoc = cursor
	}

	ssTimeElem, err := subDoc.LookupErr("atClusterTime")
	if err != nil {
		// atClusterTime not included by the server
		return
	}

	t, i, ok := ssTimeElem.TimestampOK()
	if !ok {
		return
	}

	c.SnapshotTime = &primitive.Timestamp{
		T: t,
		I: i,
	}
}

// UpdateUseTime updates the session's last used time.
// Must be called whenever this session is used to send a command to the server.
func (c *Client) UpdateUseTime() error {
	if c.Terminated {
		return ErrSessionEnded
	}
	c.serverSession.updateUseTime()
	return nil
}

// MarkDirty marks the session as dirty for the rest of its lifetime. The
// underlying server session is discarded instead of pooled when the session
// ends.
func (c *Client) MarkDirty() {
	if c.serverSession != nil {
		c.serverSession.MarkDirty()
	}
}

// IsDirty returns whether or not the session has been marked dirty.
func (c *Client) IsDirty() bool {
	return c.serverSession != nil && c.serverSession.Dirty
}

// IncrementTxnNumber increments the transaction number.
// Must be called before a retryable write is sent with this session.
func (c *Client) IncrementTxnNumber() {
	if c.serverSession != nil {
		c.serverSession.TxnNumber++
	}
}

// TxnNumber returns the session's current transaction number.
func (c *Client) TxnNumber() int64 {
	if c.serverSession == nil {
		return 0
	}
	return c.serverSession.TxnNumber
}

// EndSession ends the session. The server session is returned to the pool
// unless it is dirty, in which case it is discarded. Calling EndSession more
// than once is a no-op.
func (c *Client) EndSession() {
	if c.Terminated {
		return
	}

	c.Terminated = true
	if c.serverSession == nil {
		return
	}

	if c.serverSession.Dirty {
		c.pool.DiscardSession(c.serverSession)
	} else {
		c.pool.ReturnSession(c.serverSession)
	}
	c.serverSession = nil
}
