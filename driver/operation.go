// Copyright (C) KeelDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/keeldb/keel-go-driver/driver/description"
	"github.com/keeldb/keel-go-driver/driver/session"
)

// Operation executes a single command against a deployment with session,
// cluster time, and read concern decoration applied, and absorbs the reply's
// metadata back into the session and cluster clock.
type Operation struct {
	// DB is the database the command runs against.
	DB string

	// Name is the command name, used for observability.
	Name string

	// Command is the command document before any session decoration.
	Command bsoncore.Document

	// Client is the session the command runs under. May be nil for
	// session-less commands; the cluster time is still gossiped via Clock.
	Client *session.Client

	// Clock is the process-wide cluster clock of the owning client.
	Clock *session.ClusterClock

	// RetryWrite marks the command as a retryable write. The session's
	// transaction number is incremented and attached.
	RetryWrite bool

	// Deployment executes the decorated command.
	Deployment Deployment
}

// Execute decorates the command, round-trips it, and absorbs the reply. The
// reply document is returned even when the server reports a command failure so
// callers can inspect it.
func (op Operation) Execute(ctx context.Context) (bsoncore.Document, error) {
	if op.Deployment == nil {
		return nil, ErrDeploymentRequired
	}

	desc := op.Deployment.Description()

	idx, dst := bsoncore.AppendDocumentStart(nil)
	elems, err := op.Command.Elements()
	if err != nil {
		return nil, err
	}
	for _, elem := range elems {
		dst = append(dst, elem...)
	}

	dst, err = op.addSession(dst, desc)
	if err != nil {
		return nil, err
	}
	dst = op.addClusterTime(dst, desc)
	dst = op.addReadConcern(dst, desc)

	dst, err = bsoncore.AppendDocumentEnd(dst, idx)
	if err != nil {
		return nil, err
	}

	res, err := op.Deployment.RoundTrip(ctx, op.DB, bsoncore.Document(dst))
	if err != nil {
		return nil, op.networkError(err)
	}

	// Reply metadata is absorbed even when the reply carries an error
	// document; the server gossips $clusterTime on failures too.
	op.updateClusterTimes(res)
	op.updateOperationTime(res)
	op.Client.UpdateSnapshotTime(res)

	if err := extractError(res); err != nil {
		return res, err
	}

	return res, nil
}

// addSession adds the session identifier, and the transaction number for
// retryable writes, to the command.
func (op Operation) addSession(dst []byte, desc description.Topology) ([]byte, error) {
	client := op.Client
	if client == nil || !desc.SessionsSupported() {
		return dst, nil
	}

	if client.Terminated {
		return nil, session.ErrSessionEnded
	}

	dst = bsoncore.AppendDocumentElement(dst, "lsid", client.SessionID)

	if op.RetryWrite {
		client.IncrementTxnNumber()
		dst = bsoncore.AppendInt64Element(dst, "txnNumber", client.TxnNumber())
	}

	return dst, client.UpdateUseTime()
}

// addClusterTime gossips the highest cluster time known to either the session
// or the process-wide clock.
func (op Operation) addClusterTime(dst []byte, desc description.Topology) []byte {
	client, clock := op.Client, op.Clock
	if (clock == nil && client == nil) || !desc.SessionsSupported() {
		return dst
	}

	var clusterTime bson.Raw
	if clock != nil {
		clusterTime = clock.GetClusterTime()
	}
	if client != nil {
		clusterTime = session.MaxClusterTime(clusterTime, client.ClusterTime)
	}
	if clusterTime == nil {
		return dst
	}

	// The stored value is a {$clusterTime: ...} document; splice its elements
	// into the command by stripping the length header and trailing null.
	return append(dst, clusterTime[4:len(clusterTime)-1]...)
}

// addReadConcern attaches the causal-consistency read constraint, or the
// snapshot read timestamp, when the session calls for one. An explicit read
// concern supplied by an outer layer is the outer layer's concern; this only
// runs for commands that carry none.
func (op Operation) addReadConcern(dst []byte, desc description.Topology) []byte {
	client := op.Client
	if client == nil || !desc.SessionsSupported() {
		return dst
	}

	var elems []byte
	if client.Consistent && client.OperationTime != nil {
		elems = bsoncore.AppendTimestampElement(elems, "afterClusterTime",
			client.OperationTime.T, client.OperationTime.I)
	}
	if client.Snapshot {
		elems = bsoncore.AppendStringElement(elems, "level", "snapshot")
		if client.SnapshotTime != nil {
			elems = bsoncore.AppendTimestampElement(elems, "atClusterTime",
				client.SnapshotTime.T, client.SnapshotTime.I)
		}
	}

	if len(elems) == 0 {
		return dst
	}

	return bsoncore.AppendDocumentElement(dst, "readConcern", bsoncore.BuildDocument(nil, elems))
}

// networkError wraps a transport-level failure and marks the session dirty:
// after losing a connection mid-command the server-side state of the session
// is unknown and it must not be reused.
func (op Operation) networkError(err error) error {
	if err == nil {
		return nil
	}

	if op.Client != nil {
		op.Client.MarkDirty()
	}

	return Error{Message: err.Error(), Labels: []string{NetworkError}, Wrapped: err}
}

func responseClusterTime(response bsoncore.Document) bson.Raw {
	value, err := response.LookupErr("$clusterTime")
	if err != nil {
		// $clusterTime not included by the server
		return nil
	}

	return bsoncore.BuildDocument(nil, bsoncore.AppendValueElement(nil, "$clusterTime", value))
}

func (op Operation) updateClusterTimes(response bsoncore.Document) {
	clusterTime := responseClusterTime(response)
	if clusterTime == nil {
		return
	}

	if op.Client != nil {
		// The only advancement error is use-after-end, which addSession
		// already rules out.
		_ = op.Client.AdvanceClusterTime(clusterTime)
	}
	if op.Clock != nil {
		op.Clock.AdvanceClusterTime(clusterTime)
	}
}

func (op Operation) updateOperationTime(response bsoncore.Document) {
	if op.Client == nil {
		return
	}

	opTimeElem, err := response.LookupErr("operationTime")
	if err != nil {
		// operationTime not included by the server
		return
	}

	t, i, ok := opTimeElem.TimestampOK()
	if !ok {
		return
	}

	_ = op.Client.AdvanceOperationTime(&primitive.Timestamp{
		T: t,
		I: i,
	})
}
