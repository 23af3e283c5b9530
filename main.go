package main

import (
	"embed"

	cmd "github.com/qa-tracking/qa-report-tool/cmd/qareport"
	"github.com/qa-tracking/qa-report-tool/internal/assets"
)

//go:embed data/templates
var vfs embed.FS

func main() {
	assets.UpdateData(&vfs)
	cmd.Execute()
}
