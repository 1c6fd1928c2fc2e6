// Copyright (C) KeelDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package session

// poolIterator iterates over the idle sessions of a Pool. The caller must hold
// the pool's mutex for the duration of the iteration.
type poolIterator struct {
	node       *Node
	serverSess *Server
}

func newPoolIterator(p *Pool) *poolIterator {
	var node *Node
	if p != nil {
		node = p.head
	}

	return &poolIterator{
		node: node,
	}
}

// Next fetches the next server session in the pool, returning whether or not the next
// session could be fetched. If true is returned, call Element to get the server
// session. If false is returned, there are no more sessions remaining.
func (i *poolIterator) Next() bool {
	if i.node == nil {
		return false
	}

	i.serverSess = i.node.Server
	i.node = i.node.next
	return true
}

// Element returns the current session of the iterator.
func (i *poolIterator) Element() *Server {
	return i.serverSess
}
