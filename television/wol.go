// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package television

import (
	"fmt"
	"net"

	"github.com/soothill/smartthings-tv-bridge/pkg/metrics"
)

const wolPort = 9

// SendWakePacket broadcasts a wake-on-LAN magic packet for the given MAC
// address: six 0xFF bytes followed by the MAC repeated sixteen times.
func SendWakePacket(mac string) error {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return fmt.Errorf("invalid MAC address %q: %w", mac, err)
	}
	if len(hw) != 6 {
		return fmt.Errorf("invalid MAC address %q: expected 6 bytes, got %d", mac, len(hw))
	}

	packet := make([]byte, 0, 102)
	for i := 0; i < 6; i++ {
		packet = append(packet, 0xFF)
	}
	for i := 0; i < 16; i++ {
		packet = append(packet, hw...)
	}

	addr := &net.UDPAddr{IP: net.IPv4bcast, Port: wolPort}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("failed to open broadcast socket: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write(packet); err != nil {
		return fmt.Errorf("failed to send magic packet: %w", err)
	}

	metrics.WakePacketsSent.Inc()
	return nil
}
