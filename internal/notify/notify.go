// Package notify shows user-facing notices: an in-app notice board with
// auto-clearing success messages, optionally mirrored as desktop
// notifications via github.com/gen2brain/beeep.
package notify

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/schoolroster/roster-client/internal/config"
	"github.com/schoolroster/roster-client/internal/logging"
)

const appTitle = "Roster"

// Notifier handles desktop notifications.
type Notifier struct {
	logger  *logging.Logger
	enabled bool
	mu      sync.RWMutex

	// send delivers one notification. Replaced in tests.
	send func(title, message string) error
}

// Config holds notification configuration.
type Config struct {
	// Enabled determines if desktop notifications are sent.
	Enabled bool
}

// DefaultConfig returns the default notification configuration.
func DefaultConfig() *Config {
	return &Config{Enabled: true}
}

// ConfigFrom derives the desktop settings from the application config.
// Desktop notifications need both the notices and the desktop switch on.
func ConfigFrom(cfg config.NotificationConfig) *Config {
	return &Config{Enabled: cfg.Enabled && cfg.Desktop}
}

// NewNotifier creates a new notifier with the given configuration.
func NewNotifier(cfg *Config, logger *logging.Logger) *Notifier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Notifier{
		logger:  logger,
		enabled: cfg.Enabled,
		send: func(title, message string) error {
			// Windows toast, macOS notification center, Linux D-Bus
			return beeep.Notify(title, message, "")
		},
	}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// Mirror sends a notice to the desktop.
func (n *Notifier) Mirror(notice Notice) {
	if !n.IsEnabled() {
		return
	}

	title := appTitle
	if notice.Kind == KindError {
		title = appTitle + " Error"
	}
	if err := n.send(title, truncate(notice.Message, 200)); err != nil {
		n.logger.Warn().Err(err).Str("kind", notice.Kind.String()).Msg("Failed to send desktop notification")
	}
}

// ExportSaved announces a saved export file.
func (n *Notifier) ExportSaved(path string) {
	if !n.IsEnabled() {
		return
	}

	message := fmt.Sprintf("Roster exported to:\n%s", shortenPath(path))
	if err := n.send("Export Complete", message); err != nil {
		n.logger.Warn().Err(err).Str("path", path).Msg("Failed to send export notification")
	}
}

// LoginBlocked alerts that the backend locked out logins.
func (n *Notifier) LoginBlocked(seconds int) {
	n.Alert(fmt.Sprintf("Too many login attempts. Try again in %d seconds.", seconds))
}

// Alert sends an alert notification (error level).
func (n *Notifier) Alert(message string) {
	if !n.IsEnabled() {
		return
	}

	title := appTitle + " Alert"

	// beeep.Alert is more prominent on some platforms
	if err := beeep.Alert(title, message, ""); err != nil {
		if err := n.send(title, message); err != nil {
			n.logger.Error().Err(err).Str("message", message).Msg("Failed to send alert notification")
		}
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// shortenPath abbreviates a long path for display in notifications.
func shortenPath(path string) string {
	const maxLen = 60

	if len(path) <= maxLen {
		return path
	}

	// Show drive/root + ... + last 2 path components
	_, file := filepath.Split(path)
	parentDir := filepath.Base(filepath.Dir(path))
	short := filepath.Join("...", parentDir, file)

	vol := filepath.VolumeName(path)
	if vol != "" && len(vol)+len(short)+1 <= maxLen {
		short = vol + string(filepath.Separator) + short
	}

	if len(short) > maxLen {
		return "..." + path[len(path)-(maxLen-3):]
	}

	return short
}
