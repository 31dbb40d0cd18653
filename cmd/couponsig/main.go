// Command couponsig mints coupon keys and redemption signatures offline.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "couponsig",
		Usage: "offline coupon key and redemption signature tool",
		Commands: []*cli.Command{
			commandSign,
			commandKeygen,
			commandAddress,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
