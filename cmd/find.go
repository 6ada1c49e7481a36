package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/export"
	"github.com/sells-group/contact-finder/internal/input"
	"github.com/sells-group/contact-finder/internal/keyword"
	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/pipeline"
	"github.com/sells-group/contact-finder/pkg/notion"
)

// findOptions carries the find flags.
type findOptions struct {
	Input       string
	Sheet       string
	Notion      bool
	NotionDB    string
	Titles      string
	Exclude     string
	Departments string
	Geo         string
	Preset      string
	Quota       int
	Output      string
	Format      string
}

var findOpts findOptions

var findCmd = &cobra.Command{
	Use:   "find [domain...]",
	Short: "Discover contacts for a list of companies",
	Example: `  contact-finder find acme.com beta.io --titles "CFO, VP Finance"
  contact-finder find --input companies.csv --preset ma --output contacts.xlsx
  contact-finder find --notion --departments Finance --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runFind(ctx, cmd.OutOrStdout(), findOpts, args)
	},
}

// companySource is the ordered company list plus, for Notion-sourced
// entries, the page each one came from.
type companySource struct {
	Inputs  []string
	PageIDs []string // parallel to Inputs; "" when not from Notion
}

func (s *companySource) add(input, pageID string) {
	s.Inputs = append(s.Inputs, input)
	s.PageIDs = append(s.PageIDs, pageID)
}

func runFind(ctx context.Context, out io.Writer, opts findOptions, args []string) error {
	format, err := outputFormat(opts)
	if err != nil {
		return err
	}

	env, err := initApp(ctx, "find")
	if err != nil {
		return err
	}
	defer env.Close()

	criteria, err := resolveCriteria(criteriaInput{
		Preset:      opts.Preset,
		Titles:      keyword.Parse(opts.Titles),
		Exclude:     keyword.Parse(opts.Exclude),
		Departments: keyword.Parse(opts.Departments),
		Geography:   keyword.Parse(opts.Geo),
	}, env.Presets, model.Criteria{Departments: cfg.Discovery.Departments, Geography: cfg.Discovery.Geography})
	if err != nil {
		return err
	}
	if len(criteria.TitleKeywords) == 0 && len(criteria.Departments) == 0 {
		zap.L().Warn("find: no title keywords or departments, only the seniority fallback will run")
	}

	companies, err := collectCompanies(ctx, opts, args)
	if err != nil {
		return err
	}
	if len(companies.Inputs) == 0 {
		return eris.New("find: no companies given (pass domains, --input or --notion-db)")
	}

	if err := pipeline.Preflight(ctx, cfg.RocketReach.Key, env.Gateway); err != nil {
		return err
	}

	quota := opts.Quota
	if quota <= 0 {
		quota = cfg.Discovery.Quota
	}

	zap.L().Info("find: starting",
		zap.Int("companies", len(companies.Inputs)),
		zap.Strings("titles", criteria.TitleKeywords),
		zap.Strings("departments", criteria.Departments),
		zap.Int("quota", quota),
	)

	results, runErr := env.Runner.Run(ctx, companies.Inputs, criteria, quota,
		func(done, total int, r model.CompanyResult) {
			zap.L().Info("find: company done",
				zap.Int("done", done),
				zap.Int("total", total),
				zap.String("company", r.Company.Input),
				zap.String("status", r.Status.String()),
			)
		})

	// Results completed before an interrupt are still written.
	if err := writeResults(out, opts.Output, format, export.NewRun(results, quota, time.Now())); err != nil {
		return err
	}

	if runErr == nil {
		writeBackNotion(ctx, companies, results)
	}

	s := pipeline.Summarize(results)
	u, b := env.usageSummary()
	zap.L().Info("find: complete",
		zap.Int("companies", s.Companies),
		zap.Int("found", s.Found),
		zap.Int("no_valid_emails", s.NoValidEmails),
		zap.Int("no_contacts_found", s.NoContactsFound),
		zap.Int("contacts", s.Contacts),
		zap.Int64("searches", u.SearchCalls),
		zap.Int64("lookups", u.LookupCalls),
		zap.Int64("cache_hits", u.CacheHits),
		zap.Int64("throttled", u.Throttled),
		zap.Float64("est_cost_usd", b.Total),
	)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return eris.Wrapf(runErr, "find: interrupted after %d of %d companies", len(results), len(companies.Inputs))
		}
		return eris.Wrap(runErr, "find: run")
	}
	return nil
}

func outputFormat(opts findOptions) (export.Format, error) {
	if opts.Format != "" {
		return export.ParseFormat(opts.Format)
	}
	return export.FormatForPath(opts.Output), nil
}

// collectCompanies merges positional domains, the input file and the Notion
// database, in that order.
func collectCompanies(ctx context.Context, opts findOptions, args []string) (companySource, error) {
	var src companySource
	for _, a := range args {
		src.add(a, "")
	}

	if opts.Input != "" {
		var inOpts []input.Option
		if opts.Sheet != "" {
			inOpts = append(inOpts, input.WithSheet(opts.Sheet))
		}
		rows, err := input.ReadCompanies(opts.Input, inOpts...)
		if err != nil {
			return src, eris.Wrap(err, "find: read input")
		}
		for _, r := range rows {
			src.add(r, "")
		}
	}

	dbID := opts.NotionDB
	if dbID == "" && opts.Notion {
		dbID = cfg.Notion.CompanyDB
	}
	if dbID != "" {
		if cfg.Notion.Token == "" {
			return src, eris.New("find: notion.token is required to read a Notion database")
		}
		rows, err := notion.QueryCompanies(ctx, newNotion(cfg.Notion.Token), dbID, cfg.Notion.DomainProperty)
		if err != nil {
			return src, eris.Wrap(err, "find: read notion")
		}
		for _, r := range rows {
			src.add(r.Domain, r.PageID)
		}
	}
	return src, nil
}

func writeResults(stdout io.Writer, path string, format export.Format, run export.Run) error {
	if path == "" {
		return export.Write(stdout, format, run)
	}
	f, err := os.Create(path) // #nosec G304 -- output path is user-supplied
	if err != nil {
		return eris.Wrap(err, "find: create output")
	}
	if err := export.Write(f, format, run); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "find: close output")
}

// writeBackNotion records each Notion-sourced company's status on its page
// when notion.status_property is configured. Failures are logged only.
func writeBackNotion(ctx context.Context, src companySource, results []model.CompanyResult) {
	prop := cfg.Notion.StatusProperty
	if prop == "" || cfg.Notion.Token == "" {
		return
	}
	var client notion.Client
	for i, r := range results {
		if i >= len(src.PageIDs) || src.PageIDs[i] == "" {
			continue
		}
		if client == nil {
			client = newNotion(cfg.Notion.Token)
		}
		if err := notion.UpdateStatus(ctx, client, src.PageIDs[i], prop, r.Status.String()); err != nil {
			zap.L().Warn("find: notion write-back failed", zap.String("company", r.Company.Input), zap.Error(err))
		}
	}
}

func init() {
	f := findCmd.Flags()
	f.StringVarP(&findOpts.Input, "input", "i", "", "CSV or XLSX file of company domains")
	f.StringVar(&findOpts.Sheet, "sheet", "", "XLSX sheet name (default first sheet)")
	f.BoolVar(&findOpts.Notion, "notion", false, "read companies from notion.company_db")
	f.StringVar(&findOpts.NotionDB, "notion-db", "", "read companies from this Notion database id")
	f.StringVarP(&findOpts.Titles, "titles", "t", "", "comma-separated title keywords")
	f.StringVarP(&findOpts.Exclude, "exclude", "x", "", "comma-separated keywords to exclude")
	f.StringVar(&findOpts.Departments, "departments", "", "comma-separated departments (default from config)")
	f.StringVar(&findOpts.Geo, "geo", "", "comma-separated geography filter (default from config)")
	f.StringVarP(&findOpts.Preset, "preset", "p", "", "named criteria preset (list them with the presets command)")
	f.IntVarP(&findOpts.Quota, "quota", "n", 0, "contacts per company (default from config)")
	f.StringVarP(&findOpts.Output, "output", "o", "", "output file (default stdout)")
	f.StringVarP(&findOpts.Format, "format", "f", "", "csv, xlsx or json (default from --output extension, else csv)")
	rootCmd.AddCommand(findCmd)
}
