// Command boxhunt harvests box images from stock-photo APIs and websites.
package main

import "github.com/boxhunt/boxhunt/cmd"

func main() {
	cmd.Execute()
}
