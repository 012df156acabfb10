package maildir

import (
	"crypto/rand"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

var (
	// deliveryCounter ensures unique filenames even within the same microsecond.
	deliveryCounter uint64
	// cachedHostname is set once at startup.
	cachedHostname string
)

func init() {
	cachedHostname = getHostname()
}

// generateFilename creates a unique filename for a message added to new/.
// Format: seconds.MmicrosPpid.hostname.random
// Example: 1705678901.M123456P12345.hostname.a1b2c3d4e5f6
func generateFilename() string {
	now := time.Now()
	counter := atomic.AddUint64(&deliveryCounter, 1)
	pid := os.Getpid()

	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Sprintf("%d.M%dP%dQ%d.%s",
			now.Unix(), now.Nanosecond()/1000, pid, counter, cachedHostname)
	}
	return fmt.Sprintf("%d.M%dP%dQ%d.%s.%x",
		now.Unix(), now.Nanosecond()/1000, pid, counter, cachedHostname, suffix)
}

// getHostname returns the sanitized system hostname.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	return sanitizeHostname(hostname)
}

// sanitizeHostname replaces characters that are reserved in maildir filenames.
func sanitizeHostname(hostname string) string {
	return strings.NewReplacer("/", `\057`, ":", `\072`, "\x00", "").Replace(hostname)
}
