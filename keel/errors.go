// Copyright (C) KeelDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package keel

import "errors"

// ErrWrongClient is returned when a session is used with a client that did not
// create it.
var ErrWrongClient = errors.New("session was not created by this client")
