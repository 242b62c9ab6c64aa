// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Package provisioning is the HTTP setup API offered on the fallback
// access point.
//
// Two endpoints:
//
//	GET  /setup/config  current setup state, last error, fallback SSID
//	POST /setup/apply   submit {"ssid","password","hostname"}
//
// Every endpoint answers 403 outside setup mode. Submissions are
// validated before anything is touched and are serialized by the
// monitor; a second submission while one is applying gets 409. The
// password never appears in a response or a log line.
//
// [Server] owns the listener. Start and Stop are idempotent so the
// monitor can call them on every retry without tracking what is up.
package provisioning
