// Package nemweb fetches monthly MMSDM archive zips and directory
// listings from the NEMWeb Data Archive over HTTP.
package nemweb

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/gridseer/gridseer/internal/config"
	"github.com/gridseer/gridseer/internal/domain"
	"github.com/gridseer/gridseer/internal/observability"
)

var (
	yearLinkRe  = regexp.MustCompile(`([0-9]{4})`)
	monthLinkRe = regexp.MustCompile(`[0-9]{4}_([0-9]{2})`)
)

// Client talks to the MMSDM Historical Data SQLLoader area of the
// NEMWeb Data Archive. Requests are rate limited and retried with
// exponential backoff.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    uint64
	tables     *config.Tables
	agents     agentRing
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a NEMWeb archive client from runtime configuration.
func NewClient(cfg *config.Config, tables *config.Tables, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.ArchiveBaseURL, "/") + "/",
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.RequestBurst),
		retries: uint64(cfg.FetchRetries),
		tables:  tables,
		logger:  logger,
		metrics: metrics,
	}
}

// monthDirURL points at the SQLLoader folder for a given month.
// Most tables live under DATA; complete pre-dispatch runs live under
// PREDISP_ALL_DATA.
func (c *Client) monthDirURL(ym domain.YearMonth, folder string) string {
	return fmt.Sprintf("%s%d/MMSDM_%d_%02d/MMSDM_Historical_Data_SQLLoader/%s/",
		c.baseURL, ym.Year, ym.Year, ym.Month, folder)
}

// ArchiveURL builds the zip URL for a monthly archive.
func (c *Client) ArchiveURL(id domain.ArchiveID) string {
	folder := "DATA"
	if c.tables.IsAllData(id.ForecastType, id.Table) {
		folder = "PREDISP_ALL_DATA"
	}
	return c.monthDirURL(domain.YearMonth{Year: id.Year, Month: id.Month}, folder) + id.BaseName() + ".zip"
}

// ListMonths scrapes the archive index and returns the months with
// data available, keyed by year.
func (c *Client) ListMonths(ctx context.Context) (map[int][]int, error) {
	hrefs, err := c.fetchHrefs(ctx, c.baseURL, "")
	if err != nil {
		return nil, fmt.Errorf("list archive years: %w", err)
	}

	years := make(map[int][]int)
	for _, href := range hrefs {
		m := yearLinkRe.FindStringSubmatch(href)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		if _, seen := years[year]; seen {
			continue
		}
		months, err := c.listMonthsForYear(ctx, year)
		if err != nil {
			return nil, err
		}
		years[year] = months
	}
	return years, nil
}

func (c *Client) listMonthsForYear(ctx context.Context, year int) ([]int, error) {
	url := fmt.Sprintf("%s%d/", c.baseURL, year)
	hrefs, err := c.fetchHrefs(ctx, url, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("list months for %d: %w", year, err)
	}

	seen := make(map[int]bool)
	var months []int
	for _, href := range hrefs {
		m := monthLinkRe.FindStringSubmatch(href)
		if m == nil {
			continue
		}
		month, _ := strconv.Atoi(m[1])
		if !seen[month] {
			seen[month] = true
			months = append(months, month)
		}
	}
	sort.Ints(months)
	return months, nil
}

// ListTables scrapes the month's DATA folder and returns the requestable
// table names for a forecast type. Enumeration digits are stripped, so
// CONSTRAINTSOLUTION1..4 collapse to CONSTRAINTSOLUTION. For PREDISPATCH,
// tables whose complete history lives under PREDISP_ALL_DATA are reported
// under their undecorated names alongside their latest-run _D variants.
func (c *Client) ListTables(ctx context.Context, ym domain.YearMonth, ft domain.ForecastType) ([]string, error) {
	url := c.monthDirURL(ym, "DATA")
	hrefs, err := c.fetchHrefs(ctx, url, "")
	if err != nil {
		return nil, fmt.Errorf("list tables for %s %s: %w", ft, ym, err)
	}

	capture := regexp.MustCompile(fmt.Sprintf(`.*/PUBLIC_DVD_%s([A-Z_]*)[0-9]?_[0-9]*\.zip`, ft))
	seen := make(map[string]bool)
	for _, href := range hrefs {
		m := capture.FindStringSubmatch(href)
		if m == nil {
			continue
		}
		table := strings.TrimLeft(m[1], "_")
		if table == "" {
			continue
		}
		seen[table] = true
		if c.tables.IsLatestVariant(table) {
			base := c.tables.BaseTable(table)
			if c.tables.IsAllData(ft, base) {
				seen[base] = true
			}
		}
	}

	tables := make([]string, 0, len(seen))
	for t := range seen {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables, nil
}

// FetchArchive downloads the monthly zip for id, validates its contents
// and extracts the single CSV into destDir. It returns the path of the
// extracted CSV.
//
// A zip is expected to contain exactly one CSV named after the zip stem.
// Anything else means NEMWeb served a damaged or mislabelled archive and
// is reported as domain.ErrArchiveCorrupt so the caller can quarantine it.
func (c *Client) FetchArchive(ctx context.Context, id domain.ArchiveID, destDir string) (string, error) {
	url := c.ArchiveURL(id)

	var body []byte
	op := func() error {
		resp, err := c.get(ctx, url, "")
		if err != nil {
			return fmt.Errorf("fetch %s: %w", id.BaseName(), err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("fetch %s: %w", id.BaseName(), domain.ErrArchiveNotFound))
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("fetch %s: unexpected status %d", id.BaseName(), resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("fetch %s: read body: %w", id.BaseName(), err)
		}
		return nil
	}

	notify := func(err error, _ time.Duration) {
		c.metrics.FetchRetries.Inc()
		c.logger.Warn("retrying archive fetch", "archive", id.BaseName(), "error", err)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries), ctx)
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		outcome := "error"
		if errors.Is(err, domain.ErrArchiveNotFound) {
			outcome = "not_found"
		}
		c.metrics.ArchiveDownloads.WithLabelValues(outcome).Inc()
		return "", err
	}

	c.metrics.DownloadBytes.Add(float64(len(body)))

	csvPath, err := extractSingleCSV(body, id, destDir)
	if err != nil {
		c.metrics.ArchiveDownloads.WithLabelValues("corrupt").Inc()
		return "", err
	}

	c.metrics.ArchiveDownloads.WithLabelValues("ok").Inc()
	c.logger.Info("downloaded archive", "archive", id.BaseName(), "bytes", len(body))
	return csvPath, nil
}

// extractSingleCSV validates that the zip holds exactly one CSV whose
// name matches the archive stem, then writes it into destDir.
func extractSingleCSV(body []byte, id domain.ArchiveID, destDir string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("open zip %s: %w", id.BaseName(), domain.ErrArchiveCorrupt)
	}
	if len(zr.File) != 1 {
		return "", fmt.Errorf("zip %s holds %d entries: %w", id.BaseName(), len(zr.File), domain.ErrArchiveCorrupt)
	}

	entry := zr.File[0]
	stem := strings.TrimSuffix(entry.Name, filepath.Ext(entry.Name))
	if !strings.EqualFold(filepath.Ext(entry.Name), ".csv") || stem != id.BaseName() {
		return "", fmt.Errorf("zip %s holds unexpected entry %q: %w", id.BaseName(), entry.Name, domain.ErrArchiveCorrupt)
	}

	rc, err := entry.Open()
	if err != nil {
		return "", fmt.Errorf("open zip entry %s: %w", entry.Name, domain.ErrArchiveCorrupt)
	}
	defer rc.Close()

	csvPath := filepath.Join(destDir, entry.Name)
	out, err := os.Create(csvPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", csvPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return "", fmt.Errorf("extract %s: %w", entry.Name, err)
	}
	return csvPath, nil
}

// fetchHrefs GETs an HTML directory listing and returns its anchor hrefs.
func (c *Client) fetchHrefs(ctx context.Context, url, referer string) ([]string, error) {
	var hrefs []string
	op := func() error {
		resp, err := c.get(ctx, url, referer)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
		}

		hrefs, err = anchorHrefs(resp.Body)
		return err
	}

	notify := func(err error, _ time.Duration) {
		c.metrics.FetchRetries.Inc()
		c.logger.Warn("retrying listing fetch", "url", url, "error", err)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries), ctx)
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		return nil, err
	}
	return hrefs, nil
}

func (c *Client) get(ctx context.Context, url, referer string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.agents.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	return c.httpClient.Do(req)
}

// anchorHrefs parses HTML and collects the href of every <a> element.
func anchorHrefs(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					hrefs = append(hrefs, attr.Val)
					break
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return hrefs, nil
}
