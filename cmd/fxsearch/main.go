package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/fxsearch/fxs/internal/indexreader"
	"github.com/fxsearch/fxs/internal/query"
)

func main() {
	app := &cli.App{
		Name:      "fxsearch",
		Usage:     "query an fxs index",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "index",
				Usage: "index directory to query (defaults to ./.fxs)",
				Value: ".fxs",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "maximum number of matches to return (0 = unlimited)",
				Value: 10,
			},
			&cli.IntFlag{
				Name:  "context-before",
				Usage: "lines of context to print before each match",
			},
			&cli.IntFlag{
				Name:  "context-after",
				Usage: "lines of context to print after each match",
			},
			&cli.BoolFlag{
				Name:  "case-insensitive",
				Usage: "treat phrase terms case-insensitively too",
			},
			&cli.BoolFlag{
				Name:  "files-only",
				Usage: "print only the distinct set of matching paths",
			},
		},
		Action: runSearch,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fxsearch:", err)
		os.Exit(1)
	}
}

func runSearch(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("a query string is required", 1)
	}
	queryStr := strings.Join(c.Args().Slice(), " ")

	indexRoot, err := filepath.Abs(c.String("index"))
	if err != nil {
		return fmt.Errorf("resolving index path: %w", err)
	}

	reader, err := indexreader.Open(indexRoot)
	if err != nil {
		return fmt.Errorf("opening index %s: %w", indexRoot, err)
	}
	defer reader.Close()

	q := query.Parse(queryStr)
	if c.Bool("case-insensitive") {
		q.Root = caseFoldPhrases(q.Root)
	}
	if limit := c.Int("limit"); limit > 0 {
		q.Top = limit
	}

	exec := query.NewExecutor(reader)
	var matches []query.Match
	if c.Int("limit") > 0 {
		matches, err = exec.ExecuteTopK(q, c.Int("limit"))
	} else {
		matches, err = exec.Execute(q)
	}
	if err != nil {
		return fmt.Errorf("executing query: %w", err)
	}

	if c.Bool("files-only") {
		printFilesOnly(matches)
		return nil
	}

	printMatches(matches, c.Int("context-before"), c.Int("context-after"), reader)
	return nil
}

// caseFoldPhrases downgrades Phrase nodes to Literal so --case-insensitive
// applies spec.md §4.10.2's case-insensitive substring search to quoted
// terms too, instead of Phrase's default case-sensitive comparison.
func caseFoldPhrases(n *query.Node) *query.Node {
	if n == nil {
		return nil
	}
	if n.Kind == query.KindPhrase {
		return &query.Node{Kind: query.KindLiteral, Text: n.Text}
	}
	for i, c := range n.Children {
		n.Children[i] = caseFoldPhrases(c)
	}
	return n
}

func printFilesOnly(matches []query.Match) {
	seen := make(map[string]bool)
	var order []string
	for _, m := range matches {
		if !seen[m.Path] {
			seen[m.Path] = true
			order = append(order, m.Path)
		}
	}
	for _, p := range order {
		fmt.Println(p)
	}
}

func printMatches(matches []query.Match, before, after int, reader *indexreader.Reader) {
	for _, m := range matches {
		fmt.Printf("%s:%d: %s\n", m.Path, m.Line, m.Content)
		if before > 0 || after > 0 {
			printContext(m, before, after, reader)
		}
	}
}

func printContext(m query.Match, before, after int, reader *indexreader.Reader) {
	doc, ok := reader.GetDocument(m.DocID)
	if !ok {
		return
	}
	full, ok := reader.GetFullPath(doc)
	if !ok {
		return
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return
	}
	lines := strings.Split(string(content), "\n")
	lo := m.Line - 1 - before
	if lo < 0 {
		lo = 0
	}
	hi := m.Line - 1 + after
	if hi >= len(lines) {
		hi = len(lines) - 1
	}
	for i := lo; i <= hi; i++ {
		if i == m.Line-1 {
			continue // already printed as the match line
		}
		fmt.Printf("%s:%d- %s\n", m.Path, i+1, lines[i])
	}
}
