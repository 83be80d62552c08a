package main

import "api-testgen/cmd"

func main() {
	cmd.Execute()
}
