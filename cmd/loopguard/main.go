package main

import "github.com/vietddude/loopguard/internal/cli"

func main() {
	cli.Execute()
}
