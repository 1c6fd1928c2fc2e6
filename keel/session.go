// Copyright (C) KeelDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package keel

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/keeldb/keel-go-driver/driver/session"
)

// Session represents a logical session used to enable causal consistency and
// retryable writes for a set of sequential operations. A Session must not be
// used by two operations concurrently.
type Session struct {
	clientSession *session.Client
	client        *Client
}

// ID returns the session's identifier document.
func (s *Session) ID() bsoncore.Document {
	return s.clientSession.SessionID
}

// ClusterTime returns the highest cluster time document observed through this
// session, or nil if none has been observed.
func (s *Session) ClusterTime() bson.Raw {
	return s.clientSession.ClusterTime
}

// OperationTime returns the highest operation time observed through this
// session, or nil if none has been observed.
func (s *Session) OperationTime() *primitive.Timestamp {
	return s.clientSession.OperationTime
}

// AdvanceClusterTime advances the session's cluster time, e.g. to a value
// received through another session. The stored value only moves forward.
func (s *Session) AdvanceClusterTime(clusterTime bson.Raw) error {
	return s.clientSession.AdvanceClusterTime(clusterTime)
}

// AdvanceOperationTime advances the session's operation time. The stored value
// only moves forward.
func (s *Session) AdvanceOperationTime(opTime *primitive.Timestamp) error {
	return s.clientSession.AdvanceOperationTime(opTime)
}

// EndSession ends the session, returning the underlying server session to the
// pool (or discarding it if the session is dirty). Calling EndSession more
// than once is a no-op. Using the session after EndSession fails with
// session.ErrSessionEnded.
func (s *Session) EndSession(_ context.Context) {
	s.client.endSession(s.clientSession)
}

type sessionKey struct{}

// NewSessionContext returns a copy of ctx that carries sess. Operations run
// with the returned context execute under sess.
func NewSessionContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFromContext returns the Session stored in ctx, or nil if ctx carries
// none.
func SessionFromContext(ctx context.Context) *Session {
	if sess, ok := ctx.Value(sessionKey{}).(*Session); ok {
		return sess
	}
	return nil
}

func sessionFromContext(ctx context.Context) *session.Client {
	if sess := SessionFromContext(ctx); sess != nil {
		return sess.clientSession
	}
	return nil
}

// WithSession runs fn with sess bound to a copy of ctx. Unlike UseSession, the
// caller retains ownership of sess and remains responsible for ending it.
func WithSession(ctx context.Context, sess *Session, fn func(context.Context) error) error {
	return fn(NewSessionContext(ctx, sess))
}
