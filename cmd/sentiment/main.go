package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"linpredict/sentiment"
)

func main() {
	baseURL := flag.String("url", "http://127.0.0.1:5000", "base url of the /analyze endpoint")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	local := flag.Bool("local", false, "use the built-in lexicon instead of the endpoint")
	flag.Parse()
	log.SetFlags(0)

	var analyzer sentiment.Analyzer = sentiment.NewClient(*baseURL, *timeout)
	if *local {
		analyzer = sentiment.NewLexiconAnalyzer()
	}

	if flag.NArg() > 0 {
		if !run(analyzer, strings.Join(flag.Args(), " "), os.Stdout) {
			os.Exit(1)
		}
		return
	}

	// One text per line from stdin.
	scanner := bufio.NewScanner(os.Stdin)
	failed := false
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		if !run(analyzer, scanner.Text(), os.Stdout) {
			failed = true
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("read stdin: %v", err)
	}
	if failed {
		os.Exit(1)
	}
}

func run(analyzer sentiment.Analyzer, text string, out io.Writer) bool {
	result, err := analyzer.Analyze(context.Background(), text)
	if err != nil {
		fmt.Fprintln(out, message(err))
		return false
	}
	fmt.Fprintf(out, "Sentiment: %s\nText: %s\n", result.Sentiment, sentiment.Preview(result.InputText))
	return true
}

func message(err error) string {
	var terr *sentiment.TransportError
	switch {
	case errors.Is(err, sentiment.ErrEmptyText), errors.Is(err, sentiment.ErrTextTooShort):
		return err.Error()
	case errors.As(err, &terr):
		return fmt.Sprintf("Error: could not connect to the server at %s", terr.Endpoint)
	default:
		return "Error: " + err.Error()
	}
}
