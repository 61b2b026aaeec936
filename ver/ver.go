package ver

import "fmt"

// Filled in at link time.
var (
	Git     string
	Compile string
	Date    string
)

// Version .
func Version() string {
	return fmt.Sprintf("Version: yavtep\nGit: %s\nCompile: %s\nBuilt: %s", Git, Compile, Date)
}
