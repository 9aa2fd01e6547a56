// Command dres-client talks to a DRES evaluation server.
package main

import "github.com/Sentinel-Gate/dres-client/cmd/dres-client/cmd"

func main() {
	cmd.Execute()
}
