package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"kombatmoto/backend/internal/cache"
	"kombatmoto/backend/internal/clock"
	"kombatmoto/backend/internal/config"
	"kombatmoto/backend/internal/domain"
	"kombatmoto/backend/internal/logger"
	"kombatmoto/backend/internal/money"
	"kombatmoto/backend/internal/service"
	"kombatmoto/backend/internal/store"
	"kombatmoto/backend/internal/store/memory"
	pgstore "kombatmoto/backend/internal/store/postgres"
)

const cliActor = "collections-cli"

// backend is what a subcommand runs against.
type backend struct {
	repo  store.Repository
	cache cache.DashboardCache
	cfg   config.Config
	close func() error
}

type opener func(ctx context.Context) (backend, error)

type migrator interface {
	Migrate(ctx context.Context) error
}

func openFromEnv(ctx context.Context) (backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return backend{}, err
	}
	b := backend{cfg: cfg, cache: cache.NoopDashboardCache{}}
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL == "" {
		logger.WithComponent("collections").Warn().Msg("DATABASE_URL not set, using the in-memory demo data")
		b.repo = memory.NewSeeded()
	} else {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return backend{}, err
		}
		b.repo = pg
		closers = append(closers, pg.Close)
	}

	// The server caches the dashboard in redis; writes made here must drop
	// the same key.
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisDashboardCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.WithComponent("collections").Warn().Err(err).Msg("redis unavailable, dashboard cache not invalidated")
			_ = redisCache.Close()
		} else {
			b.cache = redisCache
			closers = append(closers, redisCache.Close)
		}
	}

	b.close = func() error {
		var errs []error
		for _, closeFn := range closers {
			errs = append(errs, closeFn())
		}
		return errors.Join(errs...)
	}
	return b, nil
}

type cli struct {
	open   opener
	date   string
	asJSON bool
}

func newRootCmd(open opener) *cobra.Command {
	c := &cli{open: open}

	root := &cobra.Command{
		Use:           "collections",
		Short:         "Credit book tools for the shop counter",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.date, "date", "", "evaluate as of this date (YYYY-MM-DD, default: today)")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print JSON instead of a table")

	root.AddCommand(
		c.receivablesCmd(),
		c.remindersCmd(),
		c.settleCmd(),
		c.statementCmd(),
		c.migrateCmd(),
	)
	return root
}

// run opens the backend, builds the service with the requested clock and
// hands it to fn.
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, svc *service.Service) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	b, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.close(); err != nil {
			logger.WithComponent("collections").Warn().Err(err).Msg("close backend")
		}
	}()

	clk, err := c.clock(b.cfg.Timezone)
	if err != nil {
		return err
	}
	svc := service.New(b.repo, service.Options{
		Clock:               clk,
		ShopName:            b.cfg.ShopName,
		Cache:               b.cache,
		DefaultDueDays:      b.cfg.DefaultDueDays,
		DefaultFineRate:     &b.cfg.DefaultFineRate,
		DefaultInterestRate: &b.cfg.DefaultInterestRate,
		RevisionIntervalKm:  b.cfg.RevisionIntervalKm,
		RevisionWindowKm:    b.cfg.RevisionWindowKm,
	})
	ctx = service.WithActor(ctx, domain.Actor{Username: cliActor, Role: domain.RoleAdmin})
	return fn(ctx, svc)
}

func (c *cli) clock(tz string) (clock.Clock, error) {
	system, err := clock.NewSystem(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", tz, err)
	}
	if strings.TrimSpace(c.date) == "" {
		return system, nil
	}
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(c.date), system.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid --date %q, use YYYY-MM-DD", c.date)
	}
	return clock.Fixed(day.Add(12 * time.Hour)), nil
}

func (c *cli) receivablesCmd() *cobra.Command {
	var customerID int64
	var status string

	cmd := &cobra.Command{
		Use:   "receivables",
		Short: "List credit sales with fine, interest and total due",
		Example: `  collections receivables --status pending
  collections receivables --customer 1 --date 2024-05-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, svc *service.Service) error {
				var filter *int64
				if customerID > 0 {
					filter = &customerID
				}
				views, err := svc.ListReceivables(ctx, filter, domain.PaymentStatus(strings.ToLower(status)))
				if err != nil {
					return err
				}
				if c.asJSON {
					return writeJSON(cmd.OutOrStdout(), views)
				}
				return printReceivables(cmd.OutOrStdout(), views)
			})
		},
	}
	cmd.Flags().Int64Var(&customerID, "customer", 0, "only this customer id")
	cmd.Flags().StringVar(&status, "status", "pending", "pending, paid or empty for all")
	return cmd
}

func (c *cli) remindersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reminders",
		Short: "Print today's WhatsApp reminders (2 days before, on the due date, overdue)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, svc *service.Service) error {
				reminders, err := svc.Reminders(ctx)
				if err != nil {
					return err
				}
				if c.asJSON {
					return writeJSON(cmd.OutOrStdout(), reminders)
				}
				out := cmd.OutOrStdout()
				if len(reminders) == 0 {
					fmt.Fprintln(out, "nenhum lembrete para hoje")
					return nil
				}
				for _, r := range reminders {
					fmt.Fprintf(out, "[%s] %s %s\n%s\n%s\n\n",
						r.Bucket, r.Receivable.SaleID, r.Receivable.CustomerName, r.Message, r.Link)
				}
				return nil
			})
		},
	}
}

func (c *cli) settleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settle <sale-id>",
		Short: "Mark a credit sale as paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, svc *service.Service) error {
				view, err := svc.SettleReceivable(ctx, args[0])
				if err != nil {
					return err
				}
				if c.asJSON {
					return writeJSON(cmd.OutOrStdout(), view)
				}
				paid := "-"
				if view.PaidDate != nil {
					paid = view.PaidDate.Format("02/01/2006")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s quitado em %s: R$ %s\n", view.SaleID, paid, money.FormatBRL(view.OriginalAmount))
				return nil
			})
		},
	}
}

func (c *cli) statementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "statement <customer-id>",
		Short: "Show a customer's open notes and remaining credit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id < 1 {
				return fmt.Errorf("invalid customer id %q", args[0])
			}
			return c.run(cmd, func(ctx context.Context, svc *service.Service) error {
				st, err := svc.CustomerStatement(ctx, id)
				if err != nil {
					return err
				}
				if c.asJSON {
					return writeJSON(cmd.OutOrStdout(), st)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (limite R$ %s)\n", st.Customer.Name, money.FormatBRL(st.Customer.CreditLimit))
				if err := printReceivables(out, st.Open); err != nil {
					return err
				}
				fmt.Fprintf(out, "dívida: R$ %s  total devido: R$ %s  crédito restante: R$ %s\n",
					money.FormatBRL(st.CurrentDebt), money.FormatBRL(st.TotalDue), money.FormatBRL(st.RemainingCredit))
				return nil
			})
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			b, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer b.close()

			m, ok := b.repo.(migrator)
			if !ok {
				return errors.New("migrate needs DATABASE_URL pointing at PostgreSQL")
			}
			if err := m.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func printReceivables(out io.Writer, views []domain.ReceivableView) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VENDA\tCLIENTE\tVENCIMENTO\tSITUAÇÃO\tDIAS\tORIGINAL\tMULTA\tJUROS\tTOTAL")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			v.SaleID,
			v.CustomerName,
			v.DueDate.Format("02/01/2006"),
			v.Aging.Status,
			v.Aging.DaysLate,
			money.FormatBRL(v.OriginalAmount),
			money.FormatBRL(v.Aging.Fine),
			money.FormatBRL(v.Aging.Interest),
			money.FormatBRL(v.Aging.TotalDue),
		)
	}
	return tw.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
