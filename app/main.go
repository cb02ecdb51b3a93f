package main

import "cds-ils/internal/cmd"

func main() {
	cmd.Execute()
}
