// Copyright (C) KeelDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package session

import (
	"sync"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/keeldb/keel-go-driver/driver/description"
)

// Node represents a server session in a linked list.
type Node struct {
	*Server
	next *Node
	prev *Node
}

// topologyDescription is the pool's view of the deployment: just enough to
// decide whether an idle session can still be reused.
type topologyDescription struct {
	kind           description.TopologyKind
	timeoutMinutes uint32
}

// Pool is a pool of server sessions that can be reused. Sessions are returned
// to the head and retrieved from the head, so the most recently used sessions
// are handed out first and stale sessions age out at the tail.
type Pool struct {
	descChan       <-chan description.Topology
	head           *Node
	tail           *Node
	latestTopology topologyDescription
	mutex          sync.Mutex // guards the list and latestTopology

	checkedOut int64 // number of sessions checked out of the pool
}

// NewPool creates a new server session pool. New topology descriptions are
// read from descChan; idle sessions are re-evaluated against the latest
// description at the next checkout rather than proactively evicted.
func NewPool(descChan <-chan description.Topology) *Pool {
	return &Pool{
		descChan: descChan,
	}
}

// assumes caller has the pool's mutex
func (p *Pool) updateTimeout() {
	select {
	case newDesc := <-p.descChan:
		p.latestTopology = topologyDescription{
			kind:           newDesc.Kind,
			timeoutMinutes: newDesc.SessionTimeoutMinutes,
		}
	default:
		// no new description waiting
	}
}

func (p *Pool) createServerSession() (*Server, error) {
	ss, err := newServerSession()
	if err != nil {
		return nil, err
	}

	atomic.AddInt64(&p.checkedOut, 1)
	return ss, nil
}

// GetSession retrieves an unexpired session from the pool, allocating a new
// one if every pooled session has expired. It never blocks; the only error is
// an identifier generation failure.
func (p *Pool) GetSession() (*Server, error) {
	p.mutex.Lock()
	p.updateTimeout()
	for p.head != nil {
		// The most recently returned session is the most likely to be fresh.
		ss := p.head.Server
		p.head = p.head.next
		if p.head != nil {
			p.head.prev = nil
		} else {
			p.tail = nil
		}

		if !ss.expired(p.latestTopology) {
			atomic.AddInt64(&p.checkedOut, 1)
			p.mutex.Unlock()
			return ss, nil
		}
	}
	p.mutex.Unlock()

	return p.createServerSession()
}

// ReturnSession returns a session to the pool if it is neither dirty nor
// expired. It must be called exactly once per GetSession.
func (p *Pool) ReturnSession(ss *Server) {
	if ss == nil {
		return
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	atomic.AddInt64(&p.checkedOut, -1)
	p.updateTimeout()

	// Dirty sessions have unknown server-side state and must never be reused.
	if ss.Dirty || ss.expired(p.latestTopology) {
		return
	}

	// Sessions at the tail are the oldest, so prune them first.
	for p.tail != nil && p.tail.Server.expired(p.latestTopology) {
		p.tail = p.tail.prev
		if p.tail != nil {
			p.tail.next = nil
		} else {
			p.head = nil
		}
	}

	newNode := &Node{
		Server: ss,
		next:   p.head,
	}
	if p.head != nil {
		p.head.prev = newNode
	} else {
		p.tail = newNode
	}
	p.head = newNode
}

// DiscardSession drops a session permanently. It is the counterpart of
// ReturnSession for sessions that must not be reused.
func (p *Pool) DiscardSession(ss *Server) {
	if ss == nil {
		return
	}

	atomic.AddInt64(&p.checkedOut, -1)
}

// Drain atomically empties the pool and returns the identifiers of every idle
// session. It is used only when the owning client shuts down.
func (p *Pool) Drain() []bsoncore.Document {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var ids []bsoncore.Document
	for iter := newPoolIterator(p); iter.Next(); {
		ids = append(ids, iter.Element().SessionID)
	}
	p.head = nil
	p.tail = nil

	return ids
}

// IDSlice returns the identifiers of every idle session without removing them
// from the pool.
func (p *Pool) IDSlice() []bsoncore.Document {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var ids []bsoncore.Document
	for iter := newPoolIterator(p); iter.Next(); {
		ids = append(ids, iter.Element().SessionID)
	}

	return ids
}

// CheckedOut returns the number of sessions currently checked out of the pool.
func (p *Pool) CheckedOut() int64 {
	return atomic.LoadInt64(&p.checkedOut)
}

// String implements the fmt.Stringer interface.
func (p *Pool) String() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	s := ""
	for iter := newPoolIterator(p); iter.Next(); {
		s += iter.Element().SessionID.String() + "\n"
	}

	return s
}
