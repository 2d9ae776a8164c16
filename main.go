package main

import "dualmux/internal/cmd"

func main() {
	cmd.Execute()
}
