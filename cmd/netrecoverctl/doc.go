// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Netrecoverctl is the operator and administrator CLI for netrecover.
//
//	netrecoverctl status [--json]              show the published setup state
//	netrecoverctl snapshots [--json]           list the configuration backups
//	netrecoverctl restore <snapshot-id>        roll back to a backup (via the helper)
//	netrecoverctl apply --file profile.jsonc   submit a profile to the setup API
//	netrecoverctl version
//
// Every command accepts --config. Profile files are JSON with comments
// and trailing commas allowed:
//
//	{
//	  "ssid": "HomeNet",
//	  "password": "correct horse", // WPA2 passphrase
//	  "hostname": "kitchen-radio",
//	}
package main
