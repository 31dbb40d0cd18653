package main

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
	"github.com/0gfoundation/0g-coupon-ledger/internal/couponsig"
)

var (
	ledgerFlag = &cli.StringFlag{
		Name:     "ledger",
		Usage:    "ledger identity (SS58 or 0x hex)",
		Required: true,
	}
	couponFlag = &cli.StringFlag{
		Name:     "coupon",
		Usage:    "coupon mini secret key 0x...",
		Required: true,
	}
	receiverFlag = &cli.StringFlag{
		Name:     "receiver",
		Usage:    "payout receiver identity (SS58 or 0x hex)",
		Required: true,
	}
	shortFlag = &cli.BoolFlag{
		Name:  "short",
		Usage: "print only the hex signature",
	}
	countFlag = &cli.IntFlag{
		Name:  "count",
		Usage: "number of coupon keys to generate",
		Value: 1,
	}
)

var commandSign = &cli.Command{
	Name:  "sign",
	Usage: "sign a redemption for a receiver",
	Description: `
Produce the signature a receiver presents to redeem a coupon. The signature
binds the ledger identity (signing context) and the receiver identity
(message); it does not cover the amount.
`,
	Flags: []cli.Flag{ledgerFlag, couponFlag, receiverFlag, shortFlag},
	Action: func(c *cli.Context) error {
		ledgerID, err := account.Parse(c.String(ledgerFlag.Name))
		if err != nil {
			return fmt.Errorf("ledger: %w", err)
		}
		receiver, err := account.Parse(c.String(receiverFlag.Name))
		if err != nil {
			return fmt.Errorf("receiver: %w", err)
		}
		secret, err := couponsig.ParseSecret(c.String(couponFlag.Name))
		if err != nil {
			return err
		}
		kp, err := couponsig.KeypairFromSecret(secret)
		if err != nil {
			return err
		}
		sig, err := kp.SignRedemption(ledgerID, receiver)
		if err != nil {
			return err
		}

		w := c.App.Writer
		if c.Bool(shortFlag.Name) {
			fmt.Fprintln(w, hexutil.Encode(sig[:]))
			return nil
		}
		fmt.Fprintln(w, "---------------------------------------")
		fmt.Fprintf(w, "Ledger:    %s\n", ledgerID)
		fmt.Fprintf(w, "Receiver:  %s\n", receiver)
		fmt.Fprintf(w, "Coupon:    %s\n", kp.Public)
		fmt.Fprintf(w, "Signature: %s\n", hexutil.Encode(sig[:]))
		return nil
	},
}

var commandKeygen = &cli.Command{
	Name:  "keygen",
	Usage: "generate coupon keys",
	Flags: []cli.Flag{countFlag},
	Action: func(c *cli.Context) error {
		n := c.Int(countFlag.Name)
		if n <= 0 {
			return errors.New("--count must be positive")
		}
		w := c.App.Writer
		for i := 0; i < n; i++ {
			kp, err := couponsig.GenerateKeypair()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s %s %s\n", hexutil.Encode(kp.Secret[:]), kp.Public, kp.Public.Hex())
		}
		return nil
	},
}

var commandAddress = &cli.Command{
	Name:      "address",
	Usage:     "print an identity in SS58 and hex form",
	ArgsUsage: "<id>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return errors.New("expected exactly one identity")
		}
		id, err := account.Parse(c.Args().First())
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "SS58: %s\nHex:  %s\n", id, id.Hex())
		return nil
	},
}
