// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the entrypoint error handler shared by the
// netrecover binaries. Each main is
//
//	func main() {
//		if err := run(); err != nil {
//			process.Fatal(err)
//		}
//	}
//
// Fatal writes to stderr directly because the structured logger may not
// exist yet when run fails (for example, on a bad --config).
package process
