package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"tlsrig/internal/certrig"
	"tlsrig/internal/gate"
	"tlsrig/internal/serverrig"
	"tlsrig/internal/tlsprobe"
	"tlsrig/internal/version"
)

const usage = `tlsrig %s — TLS test-harness toolkit

Usage:
  tlsrig issue -host HOST -out DIR [-cn-only]   provision a CA and leaf cert
  tlsrig serve -host HOST -out DIR              run an HTTPS fixture server
  tlsrig probe                                  report negotiable TLS versions
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, version.Version)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "issue":
		err = runIssue(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "probe":
		err = runProbe(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, usage, version.Version)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// runIssue provisions a fresh authority and leaf and exports the PEM
// material to the output directory.
func runIssue(args []string) error {
	fs := flag.NewFlagSet("issue", flag.ExitOnError)
	host := fs.String("host", "localhost", "hostname or IP literal to issue for")
	out := fs.String("out", ".", "directory to write ca.pem, server.pem, server.key")
	cnOnly := fs.Bool("cn-only", false, "encode the host as CommonName only, no SAN")
	fs.Parse(args)

	authority, err := certrig.NewAuthority()
	if err != nil {
		return err
	}

	spec := certrig.ForHost(*host)
	if *cnOnly {
		spec = certrig.CommonNameOnly(*host)
	}
	leaf, err := authority.Issue(spec)
	if err != nil {
		return err
	}

	paths, err := certrig.Export(authority, leaf, *out)
	if err != nil {
		return err
	}

	fmt.Println(paths.CACert)
	fmt.Println(paths.ServerCert)
	fmt.Println(paths.ServerKey)
	return nil
}

// runServe starts a SAN fixture server with the echo handler and runs it
// until SIGINT or SIGTERM.
func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	host := fs.String("host", "localhost", "hostname or IP literal to bind and issue for")
	out := fs.String("out", ".", "directory to write the certificate material")
	fs.Parse(args)

	fixture, outcome := serverrig.StartSANServer(*out, *host, serverrig.EchoHandler())
	switch outcome.Decision {
	case gate.Skipped:
		return fmt.Errorf("cannot serve: %s", outcome.Reason)
	case gate.Failed:
		return outcome.Err
	}

	fmt.Printf("serving %s (trust anchor: %s)\n", fixture.Config.BaseURL(), fixture.Config.CACertPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	return fixture.Stop()
}

// runProbe prints the negotiable TLS versions and, per probe candidate,
// what the client offered.
func runProbe(args []string) error {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	verbose := fs.Bool("v", false, "also print offered versions per candidate")
	fs.Parse(args)

	report, err := tlsprobe.Probe()
	if err != nil {
		return err
	}

	for _, name := range report.Versions.Names() {
		fmt.Println(name)
	}
	if *verbose {
		candidates := make([]string, 0, len(report.Offered))
		for c := range report.Offered {
			candidates = append(candidates, c)
		}
		sort.Strings(candidates)
		for _, c := range candidates {
			fmt.Printf("%s offered %v\n", c, report.Offered[c])
		}
	}
	return nil
}
