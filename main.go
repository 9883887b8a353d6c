// The main package for the sitesnap executable.
package main

import "github.com/JakeFAU/sitesnap/cmd"

func main() {
	cmd.Execute()
}
