package notify

import (
	"fmt"
	"strings"
	"time"
)

// FormatLostMessage creates a connection-lost notification body.
func FormatLostMessage(server string, failCount int, since time.Time) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Server: %s\n", server))
	sb.WriteString(fmt.Sprintf("Failed attempts: %d\n", failCount))
	if !since.IsZero() {
		sb.WriteString(fmt.Sprintf("Down since: %s", since.UTC().Format(time.RFC3339)))
	}

	return sb.String()
}

// FormatRestoredMessage creates a connection-restored notification body.
func FormatRestoredMessage(server string, downtime time.Duration) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Server: %s\n", server))
	sb.WriteString(fmt.Sprintf("Downtime: %s", downtime.Round(time.Second)))

	return sb.String()
}
