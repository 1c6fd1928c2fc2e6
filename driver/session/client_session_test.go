// Copyright (C) KeelDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package session

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/keeldb/keel-go-driver/driver/description"
)

var consistent = true
var sessionOpts = &ClientOptions{
	CausalConsistency: &consistent,
}

func compareOperationTimes(t *testing.T, expected *primitive.Timestamp, actual *primitive.Timestamp) {
	t.Helper()

	if expected.T != actual.T {
		t.Fatalf("T value mismatch; expected %d got %d", expected.T, actual.T)
	}

	if expected.I != actual.I {
		t.Fatalf("I value mismatch; expected %d got %d", expected.I, actual.I)
	}
}

func clusterTimeDoc(epoch, ord uint32) []byte {
	return bsoncore.BuildDocument(nil, bsoncore.AppendDocumentElement(nil, "$clusterTime",
		bsoncore.BuildDocument(nil, bsoncore.AppendTimestampElement(nil, "clusterTime", epoch, ord))))
}

func TestClientSession(t *testing.T) {
	var clusterTime1 = clusterTimeDoc(10, 5)
	var clusterTime2 = clusterTimeDoc(5, 5)
	var clusterTime3 = clusterTimeDoc(5, 0)

	t.Run("TestMaxClusterTime", func(t *testing.T) {
		maxTime := MaxClusterTime(clusterTime1, clusterTime2)
		if !bytes.Equal(maxTime, clusterTime1) {
			t.Errorf("Wrong max time")
		}

		maxTime = MaxClusterTime(clusterTime3, clusterTime2)
		if !bytes.Equal(maxTime, clusterTime2) {
			t.Errorf("Wrong max time")
		}
	})

	t.Run("TestAdvanceClusterTime", func(t *testing.T) {
		id, _ := uuid.NewRandom()
		sess, err := NewClientSession(&Pool{}, id, Explicit, sessionOpts)
		require.Nil(t, err, "Unexpected error")
		err = sess.AdvanceClusterTime(clusterTime2)
		require.Nil(t, err, "Unexpected error")
		if !bytes.Equal(sess.ClusterTime, clusterTime2) {
			t.Errorf("Session cluster time incorrect, expected %v, received %v", clusterTime2, sess.ClusterTime)
		}
		err = sess.AdvanceClusterTime(clusterTime3)
		require.Nil(t, err, "Unexpected error")
		if !bytes.Equal(sess.ClusterTime, clusterTime2) {
			t.Errorf("Session cluster time incorrect, expected %v, received %v", clusterTime2, sess.ClusterTime)
		}
		err = sess.AdvanceClusterTime(clusterTime1)
		require.Nil(t, err, "Unexpected error")
		if !bytes.Equal(sess.ClusterTime, clusterTime1) {
			t.Errorf("Session cluster time incorrect, expected %v, received %v", clusterTime1, sess.ClusterTime)
		}
		sess.EndSession()
	})

	t.Run("TestEndSession", func(t *testing.T) {
		id, _ := uuid.NewRandom()
		sess, err := NewClientSession(&Pool{}, id, Explicit, sessionOpts)
		require.Nil(t, err, "Unexpected error")
		sess.EndSession()
		err = sess.UpdateUseTime()
		require.Equal(t, ErrSessionEnded, err, "expected ErrSessionEnded, received %v", err)

		// A second EndSession must be a no-op.
		sess.EndSession()
	})

	t.Run("TestDirtySessionIsDiscarded", func(t *testing.T) {
		pool := NewPool(nil)
		pool.latestTopology = topologyDescription{timeoutMinutes: 30}

		id, _ := uuid.NewRandom()
		sess, err := NewClientSession(pool, id, Explicit, sessionOpts)
		require.Nil(t, err, "Unexpected error")

		sess.MarkDirty()
		assert.True(t, sess.IsDirty(), "expected session to be dirty")
		sess.EndSession()

		assert.Equal(t, 0, len(pool.IDSlice()), "expected dirty session to be discarded, not pooled")
		assert.Equal(t, int64(0), pool.CheckedOut(), "expected checked out count to return to 0")
	})

	t.Run("TestAdvanceOperationTime", func(t *testing.T) {
		id, _ := uuid.NewRandom()
		sess, err := NewClientSession(&Pool{}, id, Explicit, sessionOpts)
		require.Nil(t, err, "Unexpected error")

		optime1 := &primitive.Timestamp{
			T: 1,
			I: 0,
		}
		err = sess.AdvanceOperationTime(optime1)
		assert.Nil(t, err, "error updating first operation time: %s", err)
		compareOperationTimes(t, optime1, sess.OperationTime)

		optime2 := &primitive.Timestamp{
			T: 2,
			I: 0,
		}
		err = sess.AdvanceOperationTime(optime2)
		assert.Nil(t, err, "error updating second operation time: %s", err)
		compareOperationTimes(t, optime2, sess.OperationTime)

		optime3 := &primitive.Timestamp{
			T: 2,
			I: 1,
		}
		err = sess.AdvanceOperationTime(optime3)
		assert.Nil(t, err, "error updating third operation time: %s", err)
		compareOperationTimes(t, optime3, sess.OperationTime)

		err = sess.AdvanceOperationTime(&primitive.Timestamp{
			T: 1,
			I: 10,
		})
		assert.Nil(t, err, "error updating fourth operation time: %s", err)
		compareOperationTimes(t, optime3, sess.OperationTime)
		sess.EndSession()
	})

	t.Run("causal consistency and snapshot", func(t *testing.T) {
		falseVal := false
		trueVal := true

		testCases := []struct {
			description        string
			consistent         *bool
			snapshot           *bool
			expectedConsistent bool
			expectedSnapshot   bool
		}{
			{"both unset", nil, nil, true, false},
			{"both false", &falseVal, &falseVal, false, false},
			{"cc unset snapshot true", nil, &trueVal, false, true},
			{"cc unset snapshot false", nil, &falseVal, true, false},
			{"cc true snapshot unset", &trueVal, nil, true, false},
			{"cc false snapshot unset", &falseVal, nil, false, false},
			{"cc false snapshot true", &falseVal, &trueVal, false, true},
			{"cc true snapshot false", &trueVal, &falseVal, true, false},
		}

		for _, tc := range testCases {
			t.Run(tc.description, func(t *testing.T) {
				sessOpts := &ClientOptions{
					CausalConsistency: tc.consistent,
					Snapshot:          tc.snapshot,
				}

				id, _ := uuid.NewRandom()
				sess, err := NewClientSession(&Pool{}, id, Explicit, sessOpts)
				require.Nil(t, err, "unexpected NewClientSession error %v", err)

				require.Equal(t, tc.expectedConsistent, sess.Consistent,
					"expected Consistent to be %v, got %v", tc.expectedConsistent, sess.Consistent)
				require.Equal(t, tc.expectedSnapshot, sess.Snapshot,
					"expected Snapshot to be %v, got %v", tc.expectedSnapshot, sess.Snapshot)
			})
		}

		t.Run("both true", func(t *testing.T) {
			id, _ := uuid.NewRandom()
			_, err := NewClientSession(&Pool{}, id, Explicit, &ClientOptions{
				CausalConsistency: &trueVal,
				Snapshot:          &trueVal,
			})
			require.Equal(t, ErrSnapshotInvalidOptions, err, "expected ErrSnapshotInvalidOptions, got %v", err)
		})
	})

	t.Run("TestUpdateSnapshotTime", func(t *testing.T) {
		snapshot := true
		id, _ := uuid.NewRandom()
		sess, err := NewClientSession(&Pool{}, id, Explicit, &ClientOptions{Snapshot: &snapshot})
		require.Nil(t, err, "Unexpected error")

		first := bsoncore.BuildDocument(nil, bsoncore.AppendTimestampElement(nil, "atClusterTime", 3, 4))
		sess.UpdateSnapshotTime(first)
		require.NotNil(t, sess.SnapshotTime, "expected snapshot time to be pinned")
		compareOperationTimes(t, &primitive.Timestamp{T: 3, I: 4}, sess.SnapshotTime)

		// A later reply must not move the pinned time.
		second := bsoncore.BuildDocument(nil, bsoncore.AppendTimestampElement(nil, "atClusterTime", 9, 9))
		sess.UpdateSnapshotTime(second)
		compareOperationTimes(t, &primitive.Timestamp{T: 3, I: 4}, sess.SnapshotTime)

		sess.EndSession()
	})
}

func TestSessionsSupported(t *testing.T) {
	assert.False(t, description.Topology{}.SessionsSupported(),
		"expected sessions to be unsupported with no advertised timeout")
	assert.True(t, description.Topology{Kind: description.Sharded, SessionTimeoutMinutes: 30}.SessionsSupported(),
		"expected sessions to be supported with an advertised timeout")
	assert.True(t, description.Topology{Kind: description.LoadBalanced}.SessionsSupported(),
		"expected sessions to be supported in load balanced mode")
}
