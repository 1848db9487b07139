package main

import "ftc-sync/cmd"

func main() {
	cmd.Execute()
}
