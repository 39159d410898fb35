// Command extract pulls transactions out of a bank or credit-card statement
// (PDF, XLSX or CSV) and prints them with per-category and per-shop totals.
//
//	extract -password 1234 statement.pdf
//	extract -raw statement.pdf
//	extract -mode columns -date-col 0 -desc-col 2 -amount-col 4 -format csv -o out.csv statement.pdf
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/FACorreiaa/statement-extractor/internal/domain/categorization"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/export"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/normalizer"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/parser"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/service"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/tables"
	"github.com/FACorreiaa/statement-extractor/internal/domain/insights"
	"github.com/FACorreiaa/statement-extractor/pkg/config"
	"github.com/FACorreiaa/statement-extractor/pkg/logger"
	"github.com/FACorreiaa/statement-extractor/pkg/money"
)

const (
	exitOK = iota
	exitError
	exitUsage
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	password  string
	mode      string
	dateCol   int
	descCol   int
	amountCol int
	autoRoles bool
	strict    bool
	lossless  bool
	noClass   bool
	noSplit   bool
	issuer    string
	rulesFile string
	format    string
	output    string
	raw       bool
	top       int
	currency  string
	logLevel  string

	headerLabels []string
}

func parseFlags(args []string, env *config.Config, stderr io.Writer) (*options, []string, error) {
	o := &options{headerLabels: env.Extract.HeaderLabels}
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.password, "password", env.Extract.Password, "document password")
	fs.StringVar(&o.mode, "mode", env.Extract.Mode, "extraction mode: pattern or columns")
	fs.IntVar(&o.dateCol, "date-col", env.Extract.DateCol, "date column index (columns mode)")
	fs.IntVar(&o.descCol, "desc-col", env.Extract.DescCol, "description column index (columns mode)")
	fs.IntVar(&o.amountCol, "amount-col", env.Extract.AmountCol, "amount column index (columns mode)")
	fs.BoolVar(&o.autoRoles, "auto-roles", env.Extract.AutoRoles, "infer column roles from headers and data (columns mode)")
	fs.BoolVar(&o.strict, "strict", env.Extract.Strict, "drop rows missing a date, description or amount cell (columns mode)")
	fs.BoolVar(&o.lossless, "lossless", env.Extract.Lossless, "keep header, blank and zero-amount records")
	fs.BoolVar(&o.noClass, "no-classify", !env.Extract.Classify, "skip categorization")
	fs.BoolVar(&o.noSplit, "no-split", !env.Extract.SplitFallback, "do not retry unmatched rows with the row splitter")
	fs.StringVar(&o.issuer, "issuer", env.Rules.Issuer, "issuer label (informational without a database)")
	fs.StringVar(&o.rulesFile, "rules", env.Rules.File, "YAML category rule file")
	fs.StringVar(&o.format, "format", "table", "output format: table, csv, xlsx or json")
	fs.StringVar(&o.output, "o", "", "write output to this file instead of stdout")
	fs.BoolVar(&o.raw, "raw", false, "print the raw table rows and exit")
	fs.IntVar(&o.top, "top", insights.DefaultTopN, "number of categories and shops in the summary")
	fs.StringVar(&o.currency, "currency", env.Extract.Currency, "currency used to display totals")
	fs.StringVar(&o.logLevel, "log-level", "warn", "log level")

	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: extract [flags] <statement.pdf|.xlsx|.csv>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	switch o.format {
	case "table", "csv", "xlsx", "json":
	default:
		return nil, nil, fmt.Errorf("unknown format %q", o.format)
	}
	return o, fs.Args(), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	env, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return exitUsage
	}

	o, rest, err := parseFlags(args, env, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if len(rest) != 1 {
		fmt.Fprintln(stderr, "usage: extract [flags] <statement.pdf|.xlsx|.csv>")
		return exitUsage
	}
	path := rest[0]

	log := logger.New(stderr, o.logLevel, "text")

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	src, err := tables.Detect(path, data)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	rows, err := src.Rows(ctx, data, o.password)
	if errors.Is(err, tables.ErrDocumentAccess) {
		fmt.Fprintln(stderr, "cannot open document; check the password")
		return exitError
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	if o.raw {
		printRaw(stdout, rows)
		return exitOK
	}

	cfg, err := pipelineConfig(o, rows)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	base := categorization.DefaultRuleSet()
	if o.rulesFile != "" {
		if base, err = categorization.LoadRuleSetFile(o.rulesFile); err != nil {
			fmt.Fprintln(stderr, err)
			return exitError
		}
	}
	rules := categorization.NewService(nil, base, log)
	compactor := normalizer.NewCompactor(normalizer.CompactorConfig{
		Boilerplate: normalizer.DefaultCompactorConfig().Boilerplate,
		MaxLen:      env.Extract.ShopNameMax,
	})
	pipeline := service.NewPipeline(rules, compactor, nil, log)

	res, err := pipeline.Process(ctx, rows, cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	if res.NoData {
		fmt.Fprintln(stderr, "no table data found; is the document text-based?")
		return exitOK
	}

	out := stdout
	if o.output != "" {
		f, err := os.Create(o.output)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitError
		}
		defer f.Close()
		out = f
	}

	if err := write(out, o.format, res, cfg); err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	return exitOK
}

// pipelineConfig turns the flags into a pipeline config. In columns mode
// without roles or inference, the picker defaults for the table width apply.
func pipelineConfig(o *options, rows []parser.RawRow) (service.Config, error) {
	mode, err := service.ParseMode(o.mode)
	if err != nil {
		return service.Config{}, err
	}

	cfg := service.Config{
		Mode:          mode,
		AutoRoles:     o.autoRoles,
		Strict:        o.strict,
		Lossless:      o.lossless,
		Classify:      !o.noClass,
		SplitFallback: !o.noSplit,
		HeaderLabels:  o.headerLabels,
		Issuer:        o.issuer,
		Currency:      o.currency,
		TopN:          o.top,
	}

	if mode == service.ModeColumns {
		switch {
		case o.dateCol >= 0 && o.descCol >= 0 && o.amountCol >= 0:
			cfg.Roles = &parser.ColumnRoles{Date: o.dateCol, Description: o.descCol, Amount: o.amountCol}
		case !o.autoRoles:
			roles := parser.DefaultRoles(parser.Width(rows))
			cfg.Roles = &roles
		}
	}
	return cfg, cfg.Validate()
}

func printRaw(w io.Writer, rows []parser.RawRow) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	width := parser.Width(rows)

	header := make([]string, 0, width+1)
	header = append(header, "#")
	for i := range width {
		header = append(header, fmt.Sprint(i))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for i, row := range rows {
		cells := make([]string, 0, width+1)
		cells = append(cells, fmt.Sprint(i))
		for _, c := range row {
			if c.Valid {
				cells = append(cells, c.Text)
			} else {
				cells = append(cells, "-")
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}

func write(w io.Writer, format string, res *service.Result, cfg service.Config) error {
	switch format {
	case "csv":
		return export.WriteCSV(w, res.Records, cfg.Classify)
	case "xlsx":
		return export.WriteXLSX(w, res.Records)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	default:
		printTable(w, res, cfg)
		return nil
	}
}

func printTable(w io.Writer, res *service.Result, cfg service.Config) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
		export.HeaderDate, export.HeaderDescription, export.HeaderAmount, export.HeaderCategory, "商店")
	for _, r := range res.Records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Date, r.Description, r.AmountRaw, r.Category, r.Shop)
	}
	tw.Flush()

	s := res.Summary
	if s == nil {
		return
	}

	fmt.Fprintln(w)
	for _, h := range s.Highlights {
		fmt.Fprintln(w, h)
	}

	if len(s.TopCategories) > 0 && cfg.Classify {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "分類\t合計\t筆數")
		for _, c := range s.TopCategories {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", c.Category, money.FormatTotal(c.Total, s.Currency), c.TxCount)
		}
		tw.Flush()
	}

	if len(s.TopShopsBySpend) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "商店\t合計\t次數")
		for _, r := range s.TopShopsBySpend {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", r.Shop, money.FormatTotal(r.Total, s.Currency), r.Count)
		}
		tw.Flush()
	}

	if res.Stats.Unmatched > 0 {
		fmt.Fprintf(w, "\n%d rows could not be read\n", res.Stats.Unmatched)
	}
}
