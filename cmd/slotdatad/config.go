package main

type ScrapeConfig struct {
	BaseUrl          string   `json:"base_url"`
	Proxies          []string `json:"proxies"`
	CourtesyDelayMin string   `json:"courtesy_delay_min"`
	CourtesyDelayMax string   `json:"courtesy_delay_max"`
	Concurrency      int      `json:"concurrency"`
	MaxAttempts      int      `json:"max_attempts"`
}

type NotifyConfig struct {
	SmtpAddr string   `json:"smtp_addr"`
	SmtpUser string   `json:"smtp_user"`
	SmtpPass string   `json:"smtp_pass"`
	From     string   `json:"from"`
	To       []string `json:"to"`
}

type Config struct {
	Database string `json:"database"`
	// Schedule is a cron spec in Asia/Tokyo time. The site publishes a
	// day's data shortly after closing, so the default runs at 23:30.
	Schedule string       `json:"schedule"`
	Scrape   ScrapeConfig `json:"scrape"`
	Notify   NotifyConfig `json:"notify"`
}
