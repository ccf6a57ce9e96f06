package osm

import "github.com/sirupsen/logrus"

// log is the package-level logger the rest of osm should use for
// diagnostics. It is deliberately package-global, matching the rest of
// this codebase's habit of reaching for a single shared facility rather
// than threading a logger through every constructor.
var log = logrus.StandardLogger()

func init() {
	log.SetLevel(logrus.InfoLevel)
}

// Log returns the shared logger, for other packages (backends, the
// apiserver, the loader) that want the same leveled, formatted output
// osm itself uses rather than standing up their own logrus instance.
func Log() *logrus.Logger {
	return log
}
