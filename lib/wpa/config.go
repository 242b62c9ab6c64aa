// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package wpa

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/radio-headless/netrecover/lib/netprofile"
)

// DerivePSK computes the WPA2-personal pre-shared key for a passphrase
// and SSID (IEEE 802.11i, PBKDF2-HMAC-SHA1, 4096 iterations, 256 bits)
// and returns it as 64 hex digits.
func DerivePSK(passphrase netprofile.Credential, ssid string) string {
	key := pbkdf2.Key([]byte(passphrase.Reveal()), []byte(ssid), 4096, 32, sha1.New)
	return hex.EncodeToString(key)
}

// RenderConfig returns a wpa_supplicant config with a single network
// block for profile. country is the two-letter regulatory domain.
func RenderConfig(profile netprofile.Profile, country string) []byte {
	var buffer bytes.Buffer
	buffer.WriteString("# Written by netrecover. Local edits are replaced on the next apply.\n")
	buffer.WriteString("ctrl_interface=DIR=/var/run/wpa_supplicant GROUP=netdev\n")
	buffer.WriteString("update_config=0\n")
	if country != "" {
		fmt.Fprintf(&buffer, "country=%s\n", country)
	}
	buffer.WriteString("\nnetwork={\n")
	fmt.Fprintf(&buffer, "\tssid=%s\n", hex.EncodeToString([]byte(profile.SSID)))
	fmt.Fprintf(&buffer, "\tpsk=%s\n", DerivePSK(profile.Credential, profile.SSID))
	buffer.WriteString("\tkey_mgmt=WPA-PSK\n")
	buffer.WriteString("\tscan_ssid=1\n")
	buffer.WriteString("}\n")
	return buffer.Bytes()
}

// RenderEmptyConfig returns a config with no networks, used when the
// device is restored to a never-provisioned state.
func RenderEmptyConfig(country string) []byte {
	var buffer bytes.Buffer
	buffer.WriteString("# Written by netrecover. Local edits are replaced on the next apply.\n")
	buffer.WriteString("ctrl_interface=DIR=/var/run/wpa_supplicant GROUP=netdev\n")
	buffer.WriteString("update_config=0\n")
	if country != "" {
		fmt.Fprintf(&buffer, "country=%s\n", country)
	}
	return buffer.Bytes()
}
