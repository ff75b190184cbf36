// The main package for the rpv-crawler executable.
package main

import (
	"github.com/andrelmbackes/rpv-crawler/cmd"
)

func main() {
	cmd.Execute()
}
