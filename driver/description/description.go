// Copyright (C) KeelDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package description contains the types the session subsystem consumes from
// the topology monitoring collaborator.
package description

import "fmt"

// TopologyKind represents a specific topology configuration.
type TopologyKind uint32

// These constants are the available topology configurations.
const (
	Single                TopologyKind = 1
	ReplicaSetNoPrimary   TopologyKind = 2
	ReplicaSetWithPrimary TopologyKind = 4
	Sharded               TopologyKind = 256
	LoadBalanced          TopologyKind = 512
)

// String implements the fmt.Stringer interface.
func (kind TopologyKind) String() string {
	switch kind {
	case Single:
		return "Single"
	case ReplicaSetNoPrimary:
		return "ReplicaSetNoPrimary"
	case ReplicaSetWithPrimary:
		return "ReplicaSetWithPrimary"
	case Sharded:
		return "Sharded"
	case LoadBalanced:
		return "LoadBalanced"
	}

	return fmt.Sprintf("TopologyKind(%d)", kind)
}

// Topology contains a description of the deployment. The session subsystem
// only consumes the pieces relevant to session lifetime: the topology kind and
// the logical session timeout the servers advertise.
type Topology struct {
	Kind TopologyKind

	// SessionTimeoutMinutes is the advertised logical session timeout. Zero
	// means the deployment has not advertised one, in which case pooled
	// sessions cannot safely be reused.
	SessionTimeoutMinutes uint32
}

// SessionsSupported returns true if the deployment supports logical sessions.
func (t Topology) SessionsSupported() bool {
	return t.Kind == LoadBalanced || t.SessionTimeoutMinutes > 0
}
