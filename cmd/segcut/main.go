package main

import "github.com/ivanshev/segcut/internal/cli"

func main() {
	cli.Main()
}
