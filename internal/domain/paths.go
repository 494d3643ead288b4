package domain

import "path/filepath"

const (
	DatabaseFile = "tilawa.db"
	SessionFile  = "tilawa.session.json"
)

// Paths holds the on-disk locations derived from the configured directories
type Paths struct {
	DatabaseDir  string
	DatabasePath string
	SessionPath  string
	StagingDir   string
}

// NewPaths creates a new Paths instance. An empty stagingDir means a
// "tilawa" directory under the system temp dir.
func NewPaths(databaseDir, stagingDir, sessionFile string) *Paths {
	if stagingDir == "" {
		stagingDir = filepath.Join(osTempDir(), "tilawa")
	}
	if sessionFile == "" {
		sessionFile = filepath.Join(databaseDir, SessionFile)
	}
	return &Paths{
		DatabaseDir:  databaseDir,
		DatabasePath: filepath.Join(databaseDir, DatabaseFile),
		SessionPath:  sessionFile,
		StagingDir:   stagingDir,
	}
}
