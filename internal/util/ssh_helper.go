package util

import (
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
)

// getOutboundIP retrieves the preferred outbound IP address of this machine.
// It uses a UDP "connection" to a public DNS server, which sends no packets, to
// learn which local address would be used for outbound traffic.
func getOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			log.Warnf("Failed to close UDP connection: %v", closeErr)
		}
	}()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("could not assert UDP address type")
	}

	return localAddr.IP.String(), nil
}

// SSHTunnelCommand returns the command a user runs on their workstation so the identity
// provider's redirect to localhost reaches a callback server on a remote machine.
func SSHTunnelCommand(port int, host string) string {
	return fmt.Sprintf("ssh -L %d:127.0.0.1:%d <user>@%s", port, port, host)
}

// PrintSSHTunnelInstructions prints SSH tunnel instructions for reaching the local
// callback server from a remote machine.
func PrintSSHTunnelInstructions(port int) {
	host, err := getOutboundIP()
	if err != nil {
		log.Debugf("Failed to detect outbound IP: %v", err)
		host = "<server-address>"
	}
	border := "================================================================================"
	fmt.Println("To authenticate from a remote machine, an SSH tunnel may be required.")
	fmt.Println(border)
	fmt.Println("  Run the following command on your local machine (NOT the server):")
	fmt.Println()
	fmt.Printf("  %s\n", SSHTunnelCommand(port, host))
	fmt.Println()
	fmt.Println("  Add '-p <port>' when the server's SSH port is not 22.")
	fmt.Println(border)
}
