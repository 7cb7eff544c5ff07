// Command backplane is a thin host over the substrate: it verifies receipt
// files and receipt chains. Exit codes: 0 success, 1 runtime error, 2 usage
// error.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
	"github.com/Mindburn-Labs/backplane/pkg/observability"
	"github.com/Mindburn-Labs/backplane/pkg/verify"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("backplane", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "emit the verification report as JSON")
	logLevel := flags.String("log-level", "INFO", "log level (DEBUG, INFO, WARN, ERROR)")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	rest := flags.Args()
	if len(rest) < 1 {
		fmt.Fprintln(os.Stderr, "usage: backplane [-json] <verify|chain> <receipt.json>...")
		return 2
	}
	logger := observability.NewLogger(observability.Options{Level: *logLevel, Service: "backplane"})

	switch rest[0] {
	case "verify":
		if len(rest) < 2 {
			fmt.Fprintln(os.Stderr, "usage: backplane verify <receipt.json>...")
			return 2
		}
		return verifyReceipts(rest[1:], *jsonOut)
	case "chain":
		if len(rest) < 2 {
			fmt.Fprintln(os.Stderr, "usage: backplane chain <receipt.json>...")
			return 2
		}
		return verifyChain(rest[1:], *jsonOut)
	default:
		logger.Error("unknown subcommand", "subcommand", rest[0])
		return 2
	}
}

func loadReceipt(path string) (contract.Receipt, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return contract.Receipt{}, fmt.Errorf("read %s: %w", path, err)
	}
	var r contract.Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return contract.Receipt{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return r, nil
}

func verifyReceipts(paths []string, jsonOut bool) int {
	verifier := verify.NewVerifier()
	reports := make([]verify.Report, len(paths))

	var g errgroup.Group
	g.SetLimit(8)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			r, err := loadReceipt(path)
			if err != nil {
				return err
			}
			reports[i] = verifier.Verify(r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	exit := 0
	for i, report := range reports {
		if jsonOut {
			out, _ := json.MarshalIndent(report, "", "  ")
			fmt.Println(string(out))
		} else {
			printReport(paths[i], report)
		}
		if !report.Passed {
			exit = 1
		}
	}
	return exit
}

func verifyChain(paths []string, jsonOut bool) int {
	chain := make([]contract.Receipt, 0, len(paths))
	for _, path := range paths {
		r, err := loadReceipt(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		chain = append(chain, r)
	}
	report := verify.VerifyChain(chain)
	if jsonOut {
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
	} else {
		for i, individual := range report.IndividualReports {
			printReport(paths[i], individual)
		}
		for _, c := range report.ChainChecks {
			printCheck(c)
		}
	}
	if !report.AllValid {
		return 1
	}
	return 0
}

func printReport(path string, report verify.Report) {
	status := "PASS"
	if !report.Passed {
		status = "FAIL"
	}
	fmt.Printf("%s %s (%s)\n", status, path, report.ReceiptID)
	for _, c := range report.Checks {
		printCheck(c)
	}
}

func printCheck(c verify.Check) {
	mark := "ok"
	if !c.Passed {
		mark = "FAIL"
	}
	fmt.Printf("  [%s] %s: %s\n", mark, c.Name, c.Detail)
}
