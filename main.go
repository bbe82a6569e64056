// Command igwarmup automates likes, comments and story reactions through a
// real browser session, over HTTP or from the command line.
package main

import "github.com/ibeckermayer/igwarmup/internal/cli"

func main() {
	cli.Execute()
}
