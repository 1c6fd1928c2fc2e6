// Copyright (C) KeelDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
	"golang.org/x/sync/errgroup"

	"github.com/keeldb/keel-go-driver/driver/session"
)

// must be sent to the admin database
// { endSessions: [ {id: uuid}, ... ], $clusterTime: ... }

// BatchSize is the maximum number of session identifiers to include in one
// endSessions command, keeping each command under the server's size limits.
const BatchSize = 10000

// EndSessions notifies the server that a set of pooled sessions will no longer
// be used. Dispatch is best effort: the server reclaims abandoned sessions on
// its own after the logical session timeout, so failures are reported for
// logging only and never retried.
type EndSessions struct {
	Clock      *session.ClusterClock
	SessionIDs []bsoncore.Document
	Deployment Deployment
}

func (es *EndSessions) split() [][]bsoncore.Document {
	var batches [][]bsoncore.Document
	for start := 0; start < len(es.SessionIDs); start += BatchSize {
		end := start + BatchSize
		if end > len(es.SessionIDs) {
			end = len(es.SessionIDs)
		}
		batches = append(batches, es.SessionIDs[start:end])
	}

	return batches
}

func (es *EndSessions) encodeBatch(batch []bsoncore.Document) bsoncore.Document {
	vals := make([]bsoncore.Value, 0, len(batch))
	for _, id := range batch {
		vals = append(vals, bsoncore.Value{Type: bsontype.EmbeddedDocument, Data: id})
	}

	return bsoncore.BuildDocument(nil,
		bsoncore.AppendArrayElement(nil, "endSessions", bsoncore.BuildArray(nil, vals...)))
}

// BatchSizes returns the number of session identifiers in each batch that
// Dispatch will send.
func (es *EndSessions) BatchSizes() []int {
	var sizes []int
	for _, batch := range es.split() {
		sizes = append(sizes, len(batch))
	}

	return sizes
}

// Dispatch sends one endSessions command per batch, concurrently. The returned
// slice holds one entry per batch; a nil entry means the batch was delivered.
func (es *EndSessions) Dispatch(ctx context.Context) []error {
	batches := es.split()
	errs := make([]error, len(batches))

	var g errgroup.Group
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			op := Operation{
				DB:         "admin",
				Name:       "endSessions",
				Command:    es.encodeBatch(batch),
				Clock:      es.Clock,
				Deployment: es.Deployment,
			}
			_, errs[i] = op.Execute(ctx)
			// Dispatch failures are the caller's to log, not to act on.
			return nil
		})
	}
	_ = g.Wait()

	return errs
}
