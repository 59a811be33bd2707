package main

import "github.com/Vasu1712/chatsync/internal/cli"

func main() {
	cli.Execute()
}
