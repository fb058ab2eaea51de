package main

import "confsync/cmd/client/cmd"

func main() {
	cmd.Execute()
}
