// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"context"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// NetlinkRoutes reads the kernel routing table over netlink.
type NetlinkRoutes struct {
	// Interface restricts the search to routes through one link. Empty
	// searches every link.
	Interface string
}

// HasDefaultRoute reports whether an IPv4 default route exists.
func (n NetlinkRoutes) HasDefaultRoute(ctx context.Context) (bool, error) {
	var link netlink.Link
	if n.Interface != "" {
		var err error
		link, err = netlink.LinkByName(n.Interface)
		if err != nil {
			return false, fmt.Errorf("looking up %s: %w", n.Interface, err)
		}
	}
	routes, err := netlink.RouteList(link, netlink.FAMILY_V4)
	if err != nil {
		return false, fmt.Errorf("listing routes: %w", err)
	}
	for _, route := range routes {
		if IsDefaultRoute(route.Dst) {
			return true, nil
		}
	}
	return false, nil
}

// IsDefaultRoute reports whether a route destination is the IPv4
// default. Depending on kernel and library version the default route
// comes back with a nil destination or with 0.0.0.0/0.
func IsDefaultRoute(destination *net.IPNet) bool {
	if destination == nil {
		return true
	}
	ones, _ := destination.Mask.Size()
	return ones == 0 && destination.IP.Equal(net.IPv4zero)
}
