// Command semindex indexes a code repository and answers semantic
// search queries over it.
package main

import "github.com/repoindex/semindex/internal/cli"

func main() {
	cli.Execute()
}
