// Copyright (C) KeelDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package keel is the user-facing surface of the driver's logical-session
// subsystem. Every command runs under a logical session: either an explicit
// session the application starts with Client.StartSession and binds to a
// context, or an implicit session the driver checks out to scope exactly one
// operation. Server sessions are pooled and reused; at Disconnect the client
// notifies the server that the pooled sessions will no longer be used.
//
// A Session must only be used by one operation at a time. Sessions started by
// one Client cannot be used with another.
package keel
