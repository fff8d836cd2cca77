// Package theme loads the viewer stylesheet. Theming is cosmetic: failures are logged and ignored.
package theme

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Fallback is served when no stylesheet could be read.
const Fallback = `body { background: #1e1e1e; color: #e0e0e0; font-family: sans-serif; }
img.display { display: block; margin: 0 auto; background: #000; }
button:disabled { opacity: 0.4; }
`

// Load reads the stylesheet at path. On any failure it logs a warning and returns Fallback.
func Load(path string, log logrus.FieldLogger) string {
	if path == "" {
		return Fallback
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if log != nil {
			log.WithField("path", path).WithError(err).Warn("stylesheet not loaded, using fallback")
		}
		return Fallback
	}

	return string(data)
}
