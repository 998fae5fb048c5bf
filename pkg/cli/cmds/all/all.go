// Package all registers all shell commands.
package all

import (
	// register commands.
	_ "github.com/robotalks/dxl.go/pkg/cli/cmds/motion"
	_ "github.com/robotalks/dxl.go/pkg/cli/cmds/servo"
)
