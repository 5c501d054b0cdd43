package main

import "github.com/jibmail/jib/cmd/jib/commands"

func main() {
	commands.Execute()
}
