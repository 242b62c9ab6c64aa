// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package accesspoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vishvananda/netlink"

	"github.com/radio-headless/netrecover/lib/atomicfile"
)

// DefaultSettle is how long a freshly started child must stay alive
// before Up reports success.
const DefaultSettle = time.Second

// Addresses assigns and removes the gateway address on the interface.
type Addresses interface {
	Assign(iface string, prefix netip.Prefix) error
	Remove(iface string, prefix netip.Prefix) error
}

// HostapdOptions configures the Hostapd backend.
type HostapdOptions struct {
	// RunDir receives hostapd.conf and dnsmasq.conf.
	RunDir string

	HostapdBinary string
	DnsmasqBinary string

	// Addresses defaults to NetlinkAddresses.
	Addresses Addresses

	// Settle defaults to DefaultSettle.
	Settle time.Duration

	Logger *slog.Logger
}

// Hostapd is the production Backend: a gateway address plus hostapd
// and dnsmasq child processes.
type Hostapd struct {
	options HostapdOptions

	mu       sync.Mutex
	children []*child
	assigned *assignment
}

type assignment struct {
	iface  string
	prefix netip.Prefix
}

// NewHostapd returns a Hostapd backend.
func NewHostapd(options HostapdOptions) *Hostapd {
	if options.Addresses == nil {
		options.Addresses = NetlinkAddresses{}
	}
	if options.Settle <= 0 {
		options.Settle = DefaultSettle
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Hostapd{options: options}
}

// Up assigns the gateway address, writes the daemon configs and starts
// hostapd and dnsmasq. Anything already started is left for Down to
// clean up when Up fails.
func (h *Hostapd) Up(ctx context.Context, settings Settings) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.options.Addresses.Assign(settings.Interface, settings.Gateway); err != nil {
		return fmt.Errorf("assigning gateway address: %w", err)
	}
	h.assigned = &assignment{iface: settings.Interface, prefix: settings.Gateway}

	if err := os.MkdirAll(h.options.RunDir, 0755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}
	hostapdConf := filepath.Join(h.options.RunDir, "hostapd.conf")
	if err := atomicfile.Write(hostapdConf, RenderHostapdConfig(settings), 0600); err != nil {
		return err
	}
	dnsmasqConf := filepath.Join(h.options.RunDir, "dnsmasq.conf")
	if err := atomicfile.Write(dnsmasqConf, RenderDnsmasqConfig(settings), 0600); err != nil {
		return err
	}

	// hostapd must own the interface before dnsmasq binds to it.
	launches := []struct {
		name string
		argv []string
	}{
		{"hostapd", []string{h.options.HostapdBinary, hostapdConf}},
		{"dnsmasq", []string{h.options.DnsmasqBinary, "--keep-in-foreground", "--conf-file=" + dnsmasqConf}},
	}
	for _, launch := range launches {
		started, err := startChild(launch.name, launch.argv, h.options.Logger)
		if err != nil {
			return err
		}
		h.children = append(h.children, started)
		if err := started.settle(ctx, h.options.Settle); err != nil {
			return err
		}
	}
	return nil
}

// Healthy reports whether Up has run and every child it started is
// still running.
func (h *Hostapd) Healthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.children) == 0 {
		return false
	}
	for _, started := range h.children {
		if started.exited() {
			return false
		}
	}
	return true
}

// Down stops the children in reverse start order and removes the
// gateway address. It is safe to call after a partial Up.
func (h *Hostapd) Down(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for i := len(h.children) - 1; i >= 0; i-- {
		if err := h.children[i].stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	h.children = nil

	if h.assigned != nil {
		if err := h.options.Addresses.Remove(h.assigned.iface, h.assigned.prefix); err != nil {
			errs = append(errs, fmt.Errorf("removing gateway address: %w", err))
		} else {
			h.assigned = nil
		}
	}
	return errors.Join(errs...)
}

// RenderHostapdConfig returns a hostapd config for a WPA2-personal
// network on the 2.4 GHz band.
func RenderHostapdConfig(settings Settings) []byte {
	var buffer bytes.Buffer
	fmt.Fprintf(&buffer, "interface=%s\n", settings.Interface)
	buffer.WriteString("driver=nl80211\n")
	fmt.Fprintf(&buffer, "ssid=%s\n", settings.SSID)
	if settings.Country != "" {
		fmt.Fprintf(&buffer, "country_code=%s\n", settings.Country)
	}
	buffer.WriteString("hw_mode=g\n")
	fmt.Fprintf(&buffer, "channel=%d\n", settings.Channel)
	buffer.WriteString("auth_algs=1\n")
	buffer.WriteString("ignore_broadcast_ssid=0\n")
	buffer.WriteString("wpa=2\n")
	fmt.Fprintf(&buffer, "wpa_passphrase=%s\n", settings.Passphrase)
	buffer.WriteString("wpa_key_mgmt=WPA-PSK\n")
	buffer.WriteString("rsn_pairwise=CCMP\n")
	return buffer.Bytes()
}

// RenderDnsmasqConfig returns a DHCP-only dnsmasq config for the setup
// network. DNS is disabled: clients reach the setup API by address.
func RenderDnsmasqConfig(settings Settings) []byte {
	gateway := settings.Gateway.Addr()
	mask := net.IP(net.CIDRMask(settings.Gateway.Bits(), 32)).String()

	var buffer bytes.Buffer
	fmt.Fprintf(&buffer, "interface=%s\n", settings.Interface)
	buffer.WriteString("bind-interfaces\n")
	fmt.Fprintf(&buffer, "listen-address=%s\n", gateway)
	buffer.WriteString("port=0\n")
	buffer.WriteString("no-resolv\n")
	buffer.WriteString("no-hosts\n")
	fmt.Fprintf(&buffer, "dhcp-range=%s,%s,%s,15m\n", settings.RangeStart, settings.RangeEnd, mask)
	fmt.Fprintf(&buffer, "dhcp-option=option:router,%s\n", gateway)
	buffer.WriteString("dhcp-authoritative\n")
	return buffer.Bytes()
}

// NetlinkAddresses manages interface addresses over netlink.
type NetlinkAddresses struct{}

// Assign sets prefix on iface, replacing an identical existing address,
// and brings the link up.
func (NetlinkAddresses) Assign(iface string, prefix netip.Prefix) error {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", iface, err)
	}
	address, err := netlink.ParseAddr(prefix.String())
	if err != nil {
		return err
	}
	if err := netlink.AddrReplace(link, address); err != nil {
		return fmt.Errorf("adding %s to %s: %w", prefix, iface, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("bringing up %s: %w", iface, err)
	}
	return nil
}

// Remove deletes prefix from iface.
func (NetlinkAddresses) Remove(iface string, prefix netip.Prefix) error {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", iface, err)
	}
	address, err := netlink.ParseAddr(prefix.String())
	if err != nil {
		return err
	}
	if err := netlink.AddrDel(link, address); err != nil {
		return fmt.Errorf("removing %s from %s: %w", prefix, iface, err)
	}
	return nil
}

// InterfaceMAC returns the hardware address of iface.
func InterfaceMAC(iface string) (net.HardwareAddr, error) {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", iface, err)
	}
	mac := link.Attrs().HardwareAddr
	if len(mac) == 0 {
		return nil, fmt.Errorf("%s has no hardware address", iface)
	}
	return mac, nil
}
