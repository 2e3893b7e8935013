// Command keygate-admin is the administrative CLI for the keygate service.
package main

import "github.com/wrensec/keygate/cmd/cli"

func main() {
	cli.Execute()
}
