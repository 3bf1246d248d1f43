// Package appfs embeds the static assets shipped with the binaries.
package appfs

import "embed"

//go:embed migrations/*.sql all:templates common-passwords.txt.gz
var FS embed.FS
