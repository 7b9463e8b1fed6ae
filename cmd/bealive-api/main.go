// Command bealive-api runs the BeAlive REST API.
package main

import "github.com/bealive/bealive-api/cmd/bealive-api/commands"

func main() {
	commands.Execute()
}
