package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alovak/atm-playground/internal/cardgen"
	"github.com/alovak/atm-playground/internal/devclient"
	"github.com/alovak/atm-playground/internal/expiry"
)

var (
	flagBIN       = flag.String("bin", "421234", "6/8/9-digit BIN prefix")
	flagLength    = flag.Int("length", 16, "PAN length")
	flagATM       = flag.String("atm", "http://127.0.0.1:8080", "cash machine base URL")
	flagAccountID = flag.String("account", "", "ledger account ID; a new account is opened when empty")
	flagBalance   = flag.Int64("balance", 1000, "opening balance of a new account")
	flagCurrency  = flag.String("currency", "PL", "currency of a new account")
	flagPIN       = flag.Int("pin", 1234, "card PIN")
	flagProduct   = flag.String("product", "debit", "card product: credit|debit")
	flagShowOnly  = flag.Bool("print", false, "print JSON only, do not POST")
	flagVerbose   = flag.Bool("verbose", false, "print full PAN (otherwise masked)")
)

func main() {
	flag.Parse()
	must(cardgen.ValidateBIN(*flagBIN))
	if *flagPIN < 0 || *flagPIN > 999999 {
		fail("-pin must have 4..6 digits")
	}

	pan := must1(cardgen.GeneratePAN(*flagBIN, *flagLength))
	expYYMM := expiry.DefaultPolicy().IssueYYMM(time.Now(), *flagProduct)

	printPAN := cardgen.MaskPAN(pan)
	if *flagVerbose || !*flagShowOnly {
		printPAN = pan
	}
	fmt.Printf("PAN: %s\nEXP(YYMM): %s\n", printPAN, expYYMM)

	req := devclient.RegisterReq{
		Number:     pan,
		PIN:        *flagPIN,
		AccountID:  *flagAccountID,
		ExpiryYYMM: expYYMM,
	}

	if *flagShowOnly {
		req.Number = printPAN
		enc, _ := json.MarshalIndent(req, "", "  ")
		fmt.Println(string(enc))
		return
	}

	cli := devclient.New(*flagATM, &http.Client{Timeout: 10 * time.Second})
	ctx := context.Background()

	if req.AccountID == "" {
		req.AccountID = must1(cli.CreateAccount(ctx, *flagBalance, *flagCurrency))
		fmt.Printf("ACCOUNT: %s (balance %d %s)\n", req.AccountID, *flagBalance, *flagCurrency)
	}

	must(cli.RegisterCard(ctx, req))
	fmt.Println("Card registered OK.")
}

func must(err error) {
	if err != nil {
		fail("%v", err)
	}
}
func must1[T any](v T, err error) T {
	if err != nil {
		fail("%v", err)
	}
	return v
}
func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
