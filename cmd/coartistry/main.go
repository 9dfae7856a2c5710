package main

import "coartistry-backend/internal/cli"

func main() {
	cli.Execute()
}
