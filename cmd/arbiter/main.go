package main

import "github.com/vietddude/arbiter/internal/cli"

func main() {
	cli.Execute()
}
