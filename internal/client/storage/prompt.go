package storage

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/photos-network/photos-sync/internal/models"
)

// PromptForSettings walks the user through server setup. An empty answer keeps
// the current value.
func PromptForSettings(in io.Reader, out io.Writer, current models.Settings) models.Settings {
	scanner := bufio.NewScanner(in)
	ask := func(label, value string) string {
		if value != "" {
			fmt.Fprintf(out, "%s [%s]: ", label, value)
		} else {
			fmt.Fprintf(out, "%s: ", label)
		}
		if !scanner.Scan() {
			return value
		}
		if answer := strings.TrimSpace(scanner.Text()); answer != "" {
			return answer
		}
		return value
	}

	next := current.
		WithHost(strings.TrimRight(ask("Server URL", current.Host), "/")).
		WithClientID(ask("Client ID", current.ClientID))

	// never echo the stored secret back
	fmt.Fprint(out, "Client secret (leave empty to keep): ")
	if scanner.Scan() {
		if secret := strings.TrimSpace(scanner.Text()); secret != "" {
			next = next.WithClientSecret(secret)
		}
	}
	return next
}
