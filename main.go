package main

import "github.com/ValentinKolb/dBind/cmd"

func main() {
	cmd.Execute()
}
