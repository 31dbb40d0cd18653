// Command couponctl is the operator and holder client for couponsd.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	urlFlag = &cli.StringFlag{
		Name:    "url",
		Usage:   "couponsd base URL",
		Value:   "http://localhost:8080",
		EnvVars: []string{"COUPONCTL_URL"},
	}
	keyFlag = &cli.StringFlag{
		Name:    "key",
		Usage:   "operator sr25519 mini secret 0x... (owner commands only)",
		EnvVars: []string{"COUPONCTL_KEY"},
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "couponctl",
		Usage: "manage and redeem coupons on a couponsd ledger",
		Flags: []cli.Flag{urlFlag, keyFlag},
		Commands: []*cli.Command{
			commandAdd,
			commandAddBatch,
			commandBurn,
			commandCheck,
			commandActivate,
			commandPayback,
			commandSpare,
			commandOwner,
			commandTransferOwner,
			commandBalance,
			commandJournal,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
