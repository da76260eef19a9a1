// Command locallendctl is a command-line front end for a LocalLend server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"

	"github.com/erazemk/locallend/client"
)

const usageHeader = `Usage: locallendctl [flags] <command> [args]

Flags:
  -s, -server <url>      server base URL (env LOCALLEND_SERVER, default: http://localhost:8080)
  -session <path>        session file (env LOCALLEND_SESSION, default: .locallend-session.json)
  -h, -help              show this help and exit

Commands:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("locallendctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr) }

	var server, sessionPath string
	defServer := envOr("LOCALLEND_SERVER", "http://localhost:8080")
	fs.StringVar(&server, "server", defServer, "")
	fs.StringVar(&server, "s", defServer, "")
	fs.StringVar(&sessionPath, "session", envOr("LOCALLEND_SESSION", ".locallend-session.json"), "")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		printUsage(stderr)
		return 2
	}

	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", name)
		printUsage(stderr)
		return 2
	}

	session, err := client.LoadSession(sessionPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	c := client.New(server, client.WithSession(session))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{client: c, in: stdin, out: stdout}
	err = cmd.run(ctx, a, fs.Args()[1:])

	// Login, logout and any 401 change the session.
	if current := c.Session(); current != session {
		if saveErr := client.SaveSession(sessionPath, current); saveErr != nil {
			fmt.Fprintf(stderr, "error: %v\n", saveErr)
			return 1
		}
		if current == nil && session != nil && client.StatusCode(err) != 0 {
			fmt.Fprintln(stderr, "Session expired, please log in again.")
		}
	}

	if err != nil {
		var usageErr usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(stderr, "Usage: locallendctl %s %s\n", name, cmd.usage)
			if usageErr.msg != "" {
				fmt.Fprintln(stderr, usageErr.msg)
			}
			return 2
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, usageHeader)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-14s %s\n", name, commands[name].usage)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
