package domain

import (
	"os"
	"strings"
)

var (
	defaultTempDir = os.TempDir
	osTempDir      = defaultTempDir
)

var filenameReplacer = strings.NewReplacer("/", " ", "\\", " ", ":", "-", "\x00", "")

// SafeFilename strips characters that cannot appear in an uploaded file name.
func SafeFilename(name string) string {
	return strings.TrimSpace(filenameReplacer.Replace(name))
}
