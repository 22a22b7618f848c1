package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"pachidata-backend/lib/configutil"
	"pachidata-backend/lib/scrapers/minrepo"
	"pachidata-backend/lib/serviceutil"
	"pachidata-backend/lib/sqliteutil"
	"pachidata-backend/lib/telemetry"
	"pachidata-backend/lib/timezone"
	"pachidata-backend/services/slotdata"
	"pachidata-backend/services/slotdata/db"

	"github.com/jordan-wright/email"
	"github.com/robfig/cron/v3"
)

func parseDelay(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		serviceutil.Fatal("invalid courtesy delay in config", err)
	}
	return d
}

func main() {
	ctx := serviceutil.SignalContext()

	telemetry.SetupFromEnv(ctx, "slotdatad")
	telemetry.InitSlog(false)
	telemetry.InstrumentPerfStats(ctx)

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to load configuration", err)
	}

	database, err := sqliteutil.OpenDB(db.Schema, config.Database)
	if err != nil {
		serviceutil.Fatal("failed to open db", err)
	}
	defer database.Close()

	client, err := minrepo.NewClient(minrepo.ClientOptions{
		BaseUrl:          config.Scrape.BaseUrl,
		Proxies:          config.Scrape.Proxies,
		CourtesyDelayMin: parseDelay(config.Scrape.CourtesyDelayMin, 500*time.Millisecond),
		CourtesyDelayMax: parseDelay(config.Scrape.CourtesyDelayMax, 2*time.Second),
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize scrape client", err)
	}

	svc := slotdata.NewService(database, client, slotdata.Options{
		Concurrency: config.Scrape.Concurrency,
		MaxAttempts: config.Scrape.MaxAttempts,
	})
	if err := svc.SetupStores(ctx); err != nil {
		serviceutil.Fatal("failed to seed stores", err)
	}

	schedule := config.Schedule
	if schedule == "" {
		schedule = "30 23 * * *"
	}

	cronner := cron.New(cron.WithLocation(timezone.Location))
	_, err = cronner.AddFunc(schedule, func() {
		runDaily(ctx, svc, config.Notify)
	})
	if err != nil {
		serviceutil.Fatal("invalid cron schedule", err)
	}
	cronner.Start()
	defer cronner.Stop()

	slog.InfoContext(ctx, "slotdatad running", "schedule", schedule, "database", config.Database)
	<-ctx.Done()
}

func runDaily(ctx context.Context, svc *slotdata.Service, notify NotifyConfig) {
	date := timezone.Date(timezone.Now())
	slog.InfoContext(ctx, "starting daily scrape", "date", date)

	handle, err := svc.RunSession(ctx, date, slotdata.RunOptions{})
	if err != nil {
		slog.ErrorContext(ctx, "failed to start daily session", "err", err)
		return
	}
	session, err := handle.Wait(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "daily session interrupted", "err", err)
		return
	}

	slog.InfoContext(ctx, "daily scrape finished",
		"session", session.ID,
		"status", session.Status,
		"successful", session.SuccessfulStores,
		"failed", session.FailedStores,
		"records", session.TotalRecords,
	)

	if session.Status == db.SessionCompleted {
		return
	}

	// one automatic sweep over the failures before paging anyone
	retried, err := svc.RetryFailed(ctx, slotdata.RetryTarget{SessionID: session.ID}, slotdata.RunOptions{})
	if err == nil {
		session, err = retried.Wait(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "retry sweep interrupted", "err", err)
			return
		}
	} else if !errors.Is(err, slotdata.ErrNothingToRetry) {
		slog.ErrorContext(ctx, "failed to start retry sweep", "err", err)
	}

	if session.Status != db.SessionCompleted {
		notifyFailure(ctx, notify, session.Date, session.Status, session.FailedStores)
	}
}

func notifyFailure(ctx context.Context, cfg NotifyConfig, date, status string, failed int64) {
	if cfg.SmtpAddr == "" || len(cfg.To) == 0 {
		return
	}

	host, _, err := net.SplitHostPort(cfg.SmtpAddr)
	if err != nil {
		host = cfg.SmtpAddr
	}
	e := email.NewEmail()
	e.From = cfg.From
	e.To = cfg.To
	e.Subject = fmt.Sprintf("slotdata scrape %s: %s", date, status)
	e.Text = []byte(fmt.Sprintf(
		"The daily scrape for %s ended with status %q after the retry sweep.\n%d store(s) still have no data.\n",
		date, status, failed,
	))

	err = e.Send(cfg.SmtpAddr, smtp.PlainAuth("", cfg.SmtpUser, cfg.SmtpPass, host))
	if err != nil {
		slog.ErrorContext(ctx, "failed to send failure notification", "err", err)
		return
	}
	slog.InfoContext(ctx, "sent failure notification", "to", cfg.To)
}
