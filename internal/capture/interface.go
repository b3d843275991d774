/**
 * Network Interface Management.
 *
 * Lists and selects network interfaces eligible for promiscuous capture,
 * abstracting OS-specific detail behind a single descriptor.
 */

package capture

import (
	"fmt"
	"net"

	"github.com/google/gopacket/pcap"
	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

// NetworkInterface describes one OS-level capture-eligible device.
type NetworkInterface struct {
	Name        string
	Description string
	Addresses   []string
	Flags       net.Flags
	IsUp        bool
	IsLoopback  bool
}

// ListInterfaces queries the OS for all devices pcap can open.
func ListInterfaces() ([]NetworkInterface, error) {
	devices, err := pcap.FindAllDevs()
	if err != nil {
		return nil, model.NewError(model.ErrInterfaceUnavailable, "enumerating capture devices", err)
	}

	interfaces := make([]NetworkInterface, 0, len(devices))
	for _, device := range devices {
		iface := NetworkInterface{
			Name:        device.Name,
			Description: device.Description,
			Addresses:   make([]string, 0, len(device.Addresses)),
		}
		for _, addr := range device.Addresses {
			if addr.IP != nil {
				iface.Addresses = append(iface.Addresses, addr.IP.String())
			}
		}

		if netIface, err := net.InterfaceByName(device.Name); err == nil {
			iface.Flags = netIface.Flags
			iface.IsUp = netIface.Flags&net.FlagUp != 0
			iface.IsLoopback = netIface.Flags&net.FlagLoopback != 0
		}

		interfaces = append(interfaces, iface)
	}

	return interfaces, nil
}

// FindInterface locates a specific interface by its system name, returning
// InterfaceUnavailable if it does not exist.
func FindInterface(name string) (*NetworkInterface, error) {
	interfaces, err := ListInterfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range interfaces {
		if iface.Name == name {
			return &iface, nil
		}
	}

	return nil, model.NewError(model.ErrInterfaceUnavailable, fmt.Sprintf("interface %q not found", name), nil)
}

// GetDefaultInterface applies a heuristic to suggest a mirror/span-capable
// interface: the first non-loopback, up interface with an assigned address.
func GetDefaultInterface() (*NetworkInterface, error) {
	interfaces, err := ListInterfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range interfaces {
		if !iface.IsLoopback && iface.IsUp && len(iface.Addresses) > 0 {
			return &iface, nil
		}
	}

	for _, iface := range interfaces {
		if !iface.IsLoopback {
			return &iface, nil
		}
	}

	return nil, model.NewError(model.ErrInterfaceUnavailable, "no suitable interface found", nil)
}
