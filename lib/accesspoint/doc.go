// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

// Package accesspoint runs the temporary fallback access point that
// lets a nearby operator reach the setup API.
//
// A [Controller] owns the radio's mode. Start releases the station
// (wpa_cli disconnect) and brings the access point up; Stop takes the
// access point down and hands the radio back to the station (wpa_cli
// reconnect). The two modes are never active together. Both calls are
// idempotent and bounded by the configured operation timeout.
//
// The production [Backend] is [Hostapd]: it assigns the gateway address
// with netlink, renders hostapd.conf and dnsmasq.conf into the run
// directory, and supervises hostapd and dnsmasq as child processes.
//
// The network name is derived from the interface MAC ([SSIDFor]) so two
// radios in one room advertise different names. The passphrase and
// gateway are fixed, published constants.
package accesspoint
