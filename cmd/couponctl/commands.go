package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
	"github.com/0gfoundation/0g-coupon-ledger/internal/client"
	"github.com/0gfoundation/0g-coupon-ledger/internal/couponsig"
)

// emptySlot marks an empty batch position on the command line.
const emptySlot = "-"

var (
	amountFlag = &cli.StringFlag{
		Name:     "amount",
		Usage:    "amount per coupon, in native units",
		Required: true,
	}
	receiverFlag = &cli.StringFlag{
		Name:     "receiver",
		Usage:    "payout receiver identity",
		Required: true,
	}
	signatureFlag = &cli.StringFlag{
		Name:     "signature",
		Usage:    "0x hex redemption signature from couponsig",
		Required: true,
	}
	limitFlag = &cli.IntFlag{
		Name:  "limit",
		Usage: "number of most recent events",
		Value: 20,
	}
)

var commandAdd = &cli.Command{
	Name:      "add",
	Usage:     "reserve funds for one coupon",
	ArgsUsage: "<coupon> <amount>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return errors.New("expected <coupon> <amount>")
		}
		coupon, err := account.Parse(c.Args().Get(0))
		if err != nil {
			return fmt.Errorf("coupon: %w", err)
		}
		amount, err := uint256.FromDecimal(c.Args().Get(1))
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		cl, err := newClient(c)
		if err != nil {
			return err
		}
		got, err := cl.AddCoupon(c.Context, coupon, amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "added %s for %s\n", coupon, got.Dec())
		return nil
	},
}

var commandAddBatch = &cli.Command{
	Name:      "add-batch",
	Usage:     "reserve the same amount for several coupons",
	ArgsUsage: "<coupon|-> ...",
	Flags:     []cli.Flag{amountFlag},
	Action: func(c *cli.Context) error {
		slots, err := parseSlots(c.Args().Slice())
		if err != nil {
			return err
		}
		amount, err := uint256.FromDecimal(c.String(amountFlag.Name))
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		cl, err := newClient(c)
		if err != nil {
			return err
		}
		res, err := cl.AddCoupons(c.Context, slots, amount)
		if err != nil {
			return err
		}
		return printJSON(c, res)
	},
}

var commandBurn = &cli.Command{
	Name:      "burn",
	Usage:     "burn coupons and free their reservations",
	ArgsUsage: "<coupon|-> ...",
	Action: func(c *cli.Context) error {
		slots, err := parseSlots(c.Args().Slice())
		if err != nil {
			return err
		}
		cl, err := newClient(c)
		if err != nil {
			return err
		}
		res, err := cl.BurnCoupons(c.Context, slots)
		if err != nil {
			return err
		}
		return printJSON(c, res)
	},
}

var commandCheck = &cli.Command{
	Name:      "check",
	Usage:     "show whether a coupon is redeemable",
	ArgsUsage: "<coupon>",
	Action: func(c *cli.Context) error {
		coupon, err := oneID(c)
		if err != nil {
			return err
		}
		cl, err := newClient(c)
		if err != nil {
			return err
		}
		st, err := cl.CheckCoupon(c.Context, coupon)
		if err != nil {
			return err
		}
		return printJSON(c, st)
	},
}

var commandActivate = &cli.Command{
	Name:      "activate",
	Usage:     "redeem a coupon to a receiver",
	ArgsUsage: "<coupon>",
	Flags:     []cli.Flag{receiverFlag, signatureFlag},
	Action: func(c *cli.Context) error {
		coupon, err := oneID(c)
		if err != nil {
			return err
		}
		receiver, err := account.Parse(c.String(receiverFlag.Name))
		if err != nil {
			return fmt.Errorf("receiver: %w", err)
		}
		sig, err := hexutil.Decode(c.String(signatureFlag.Name))
		if err != nil {
			return fmt.Errorf("signature: %w", err)
		}
		cl, err := newClient(c)
		if err != nil {
			return err
		}
		if err := cl.ActivateCoupon(c.Context, coupon, receiver, sig); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "redeemed %s to %s\n", coupon, receiver)
		return nil
	},
}

var commandPayback = &cli.Command{
	Name:  "payback",
	Usage: "transfer unreserved funds to the owner",
	Action: func(c *cli.Context) error {
		cl, err := newClient(c)
		if err != nil {
			return err
		}
		if err := cl.PaybackSpareFunds(c.Context); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, "ok")
		return nil
	},
}

var commandSpare = &cli.Command{
	Name:  "spare",
	Usage: "show the unreserved balance",
	Action: func(c *cli.Context) error {
		cl, err := newClient(c)
		if err != nil {
			return err
		}
		spare, err := cl.SpareBalance(c.Context)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, spare.Dec())
		return nil
	},
}

var commandOwner = &cli.Command{
	Name:  "owner",
	Usage: "show the ledger and its owner",
	Action: func(c *cli.Context) error {
		cl, err := newClient(c)
		if err != nil {
			return err
		}
		o, err := cl.Owner(c.Context)
		if err != nil {
			return err
		}
		return printJSON(c, o)
	},
}

var commandTransferOwner = &cli.Command{
	Name:      "transfer-owner",
	Usage:     "hand the ledger to a new owner",
	ArgsUsage: "<new-owner>",
	Action: func(c *cli.Context) error {
		newOwner, err := oneID(c)
		if err != nil {
			return err
		}
		cl, err := newClient(c)
		if err != nil {
			return err
		}
		if err := cl.TransferOwnership(c.Context, newOwner); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "owner is now %s\n", newOwner)
		return nil
	},
}

var commandBalance = &cli.Command{
	Name:      "balance",
	Usage:     "show an account's host balance",
	ArgsUsage: "<account>",
	Action: func(c *cli.Context) error {
		acct, err := oneID(c)
		if err != nil {
			return err
		}
		cl, err := newClient(c)
		if err != nil {
			return err
		}
		bal, err := cl.Balance(c.Context, acct)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, bal.Dec())
		return nil
	},
}

var commandJournal = &cli.Command{
	Name:  "journal",
	Usage: "list recent ledger events",
	Flags: []cli.Flag{limitFlag},
	Action: func(c *cli.Context) error {
		cl, err := newClient(c)
		if err != nil {
			return err
		}
		events, err := cl.Journal(c.Context, c.Int(limitFlag.Name))
		if err != nil {
			return err
		}
		return printJSON(c, events)
	},
}

// ── helpers ───────────────────────────────────────────────────────────────────

func newClient(c *cli.Context) (*client.Client, error) {
	var key *couponsig.Keypair
	if s := c.String(keyFlag.Name); s != "" {
		secret, err := couponsig.ParseSecret(s)
		if err != nil {
			return nil, err
		}
		if key, err = couponsig.KeypairFromSecret(secret); err != nil {
			return nil, err
		}
	}
	return client.NewClient(c.String(urlFlag.Name), key), nil
}

func oneID(c *cli.Context) (account.ID, error) {
	if c.NArg() != 1 {
		return account.ID{}, errors.New("expected exactly one identity")
	}
	return account.Parse(c.Args().First())
}

func parseSlots(args []string) ([]*account.ID, error) {
	if len(args) == 0 {
		return nil, errors.New("expected at least one coupon")
	}
	slots := make([]*account.ID, len(args))
	for i, a := range args {
		if a == emptySlot {
			continue
		}
		id, err := account.Parse(a)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}
		slots[i] = &id
	}
	return slots, nil
}

func printJSON(c *cli.Context, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}
