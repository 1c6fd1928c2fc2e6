// Copyright (C) KeelDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package keel

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/keeldb/keel-go-driver/driver"
	"github.com/keeldb/keel-go-driver/driver/description"
	"github.com/keeldb/keel-go-driver/driver/session"
	"github.com/keeldb/keel-go-driver/event"
)

// Client performs operations against a deployment, running each command under
// a pooled logical session.
type Client struct {
	id          uuid.UUID
	deployment  driver.Deployment
	sessionPool *session.Pool
	clock       *session.ClusterClock
	monitor     *event.SessionMonitor
	logger      logrus.FieldLogger
	descChan    chan description.Topology
}

// NewClient creates a Client that executes commands against the given
// deployment.
func NewClient(deployment driver.Deployment, opts ...*ClientOptions) (*Client, error) {
	if deployment == nil {
		return nil, errors.New("a non-nil Deployment is required to create a Client")
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate client id")
	}

	descChan := make(chan description.Topology, 1)
	c := &Client{
		id:          id,
		deployment:  deployment,
		clock:       &session.ClusterClock{},
		descChan:    descChan,
		sessionPool: session.NewPool(descChan),
	}

	clientOpt := mergeClientOptions(opts...)
	c.monitor = clientOpt.SessionMonitor
	c.logger = clientOpt.Logger
	if c.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.logger = l
	}

	// Seed the pool's view of the deployment.
	c.descChan <- deployment.Description()

	return c, nil
}

// HandleTopologyChanged feeds a new deployment description to the session
// pool. It is wired to the topology monitoring collaborator and must be called
// from a single goroutine. Idle sessions are re-evaluated against the new
// description at their next checkout, not proactively evicted.
func (c *Client) HandleTopologyChanged(desc description.Topology) {
	for {
		select {
		case c.descChan <- desc:
			return
		default:
		}
		// The pool has not consumed the previous update; drop it.
		select {
		case <-c.descChan:
		default:
		}
	}
}

// StartSession starts a new explicit session. The application owns the
// returned session and must call EndSession when done with it.
func (c *Client) StartSession(opts ...*session.ClientOptions) (*Session, error) {
	sess, err := session.NewClientSession(c.sessionPool, c.id, session.Explicit, opts...)
	if err != nil {
		return nil, err
	}

	c.sessionStarted(sess)
	return &Session{clientSession: sess, client: c}, nil
}

// UseSession starts a session, binds it to a new context, runs fn, and ends
// the session. The session ends exactly once on every exit path: normal
// return, error return, and panic (the panic is re-raised after cleanup).
func (c *Client) UseSession(ctx context.Context, fn func(context.Context) error) error {
	return c.UseSessionWithOptions(ctx, nil, fn)
}

// UseSessionWithOptions behaves like UseSession with session options applied.
func (c *Client) UseSessionWithOptions(ctx context.Context, opts *session.ClientOptions, fn func(context.Context) error) error {
	defaultSess, err := c.StartSession(opts)
	if err != nil {
		return err
	}

	defer defaultSess.EndSession(ctx)

	return fn(NewSessionContext(ctx, defaultSess))
}

// Disconnect reclaims the server-side resources of every pooled session and
// shuts the client down. endSessions dispatch is best effort: the server
// reclaims idle sessions on its own after the logical session timeout, so a
// dispatch failure is logged and never surfaced as a Disconnect failure.
func (c *Client) Disconnect(ctx context.Context) error {
	c.endSessions(ctx)
	return nil
}

func (c *Client) endSessions(ctx context.Context) {
	ids := c.sessionPool.Drain()
	if len(ids) == 0 {
		c.sessionsDrained(nil)
		return
	}

	es := &driver.EndSessions{
		Clock:      c.clock,
		SessionIDs: ids,
		Deployment: c.deployment,
	}
	for i, err := range es.Dispatch(ctx) {
		if err != nil {
			c.logger.WithError(err).WithField("batch", i).Warn("failed to dispatch endSessions")
		}
	}
	c.sessionsDrained(es.BatchSizes())
}

// Database returns a handle for a database with the given name.
func (c *Client) Database(name string) *Database {
	return &Database{client: c, name: name}
}

// validSession returns an error if the session was not created by this client.
func (c *Client) validSession(sess *session.Client) error {
	if sess != nil && sess.ClientID != c.id {
		return ErrWrongClient
	}
	return nil
}

func (c *Client) sessionStarted(sess *session.Client) {
	if c.monitor == nil || c.monitor.Started == nil {
		return
	}
	c.monitor.Started(&event.SessionStartedEvent{
		SessionID: sess.SessionID,
		Implicit:  sess.SessionType == session.Implicit,
	})
}

// endSession ends sess and emits the ended event. Safe to call multiple times;
// only the first call has any effect.
func (c *Client) endSession(sess *session.Client) {
	if sess.Terminated {
		return
	}

	dirty := sess.IsDirty()
	sess.EndSession()

	if c.monitor == nil || c.monitor.Ended == nil {
		return
	}
	c.monitor.Ended(&event.SessionEndedEvent{
		SessionID: sess.SessionID,
		Implicit:  sess.SessionType == session.Implicit,
		Dirty:     dirty,
	})
}

func (c *Client) sessionsDrained(batchSizes []int) {
	if c.monitor == nil || c.monitor.Drained == nil {
		return
	}
	c.monitor.Drained(&event.SessionsDrainedEvent{BatchSizes: batchSizes})
}
