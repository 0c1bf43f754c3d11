package main

import "github.com/surecall-ai/surecall/internal/cli"

func main() {
	cli.Execute()
}
