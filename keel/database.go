// Copyright (C) KeelDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package keel

import (
	"context"

	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/keeldb/keel-go-driver/driver"
	"github.com/keeldb/keel-go-driver/driver/session"
)

// Database is a handle for a database on the deployment.
type Database struct {
	client *Client
	name   string
}

// Name returns the name of the database.
func (db *Database) Name() string {
	return db.name
}

// RunCommand executes the given command against the database. If ctx carries a
// Session the command runs under it; otherwise an implicit session scopes
// exactly this call and is ended when it completes.
func (db *Database) RunCommand(ctx context.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
	sess := sessionFromContext(ctx)
	if sess != nil {
		if err := db.client.validSession(sess); err != nil {
			return nil, err
		}
		return db.runCommand(ctx, cmd, sess, false)
	}

	implicit, err := session.NewClientSession(db.client.sessionPool, db.client.id, session.Implicit)
	if err != nil {
		return nil, err
	}
	db.client.sessionStarted(implicit)
	defer db.client.endSession(implicit)

	return db.runCommand(ctx, cmd, implicit, false)
}

// RunRetryableWrite executes the given write command with a transaction number
// attached so the server can detect a re-sent attempt. The retry itself is the
// caller's concern.
func (db *Database) RunRetryableWrite(ctx context.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
	sess := sessionFromContext(ctx)
	if sess != nil {
		if err := db.client.validSession(sess); err != nil {
			return nil, err
		}
		return db.runCommand(ctx, cmd, sess, true)
	}

	implicit, err := session.NewClientSession(db.client.sessionPool, db.client.id, session.Implicit)
	if err != nil {
		return nil, err
	}
	db.client.sessionStarted(implicit)
	defer db.client.endSession(implicit)

	return db.runCommand(ctx, cmd, implicit, true)
}

func (db *Database) runCommand(ctx context.Context, cmd bsoncore.Document, sess *session.Client, retryWrite bool) (bsoncore.Document, error) {
	op := driver.Operation{
		DB:         db.name,
		Name:       commandName(cmd),
		Command:    cmd,
		Client:     sess,
		Clock:      db.client.clock,
		RetryWrite: retryWrite,
		Deployment: db.client.deployment,
	}

	return op.Execute(ctx)
}

// commandName returns the name of the command, which is the key of its first
// element.
func commandName(cmd bsoncore.Document) string {
	elems, err := cmd.Elements()
	if err != nil || len(elems) == 0 {
		return ""
	}
	return elems[0].Key()
}
