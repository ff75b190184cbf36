// Package dje drives the gazette's advanced-search UI with a headless
// browser. One Fetcher is one browser session; the orchestrator gives each
// worker its own.
package dje

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/andrelmbackes/rpv-crawler/internal/pipeline"
)

// Config controls the DJE session.
type Config struct {
	BaseURL           string
	UserAgent         string
	NavigationTimeout time.Duration
	PageDelay         time.Duration
}

const (
	defaultBaseURL    = "https://dje.tjsp.jus.br"
	defaultNavTimeout = 30 * time.Second
	defaultPageDelay  = time.Second
)

var (
	noResultsRe  = regexp.MustCompile(`(?i)n[ãa]o\s+foi\s+encontrado\s+nenhum\s+resultado`)
	totalPagesRe = regexp.MustCompile(`(?i)p[áa]gina\s+\d+\s+de\s+(\d+)`)
)

// Fetcher implements pipeline.Fetcher using chromedp.
type Fetcher struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
}

// New creates a fresh browser session.
func New(cfg Config) (*Fetcher, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavTimeout
	}
	if cfg.PageDelay <= 0 {
		cfg.PageDelay = defaultPageDelay
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context, tearing the session down.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Search submits the advanced-search form for one date and collects the
// result links. An empty result page returns pipeline.ErrNoResults.
func (f *Fetcher) Search(ctx context.Context, date string, terms []string) ([]pipeline.ResultLink, error) {
	day, err := time.Parse(pipeline.DateLayout, date)
	if err != nil {
		return nil, &pipeline.FetchError{Op: "search", Err: fmt.Errorf("invalid date %q: %w", date, err)}
	}
	gazetteDate := day.Format("02/01/2006")
	keywords := strings.Join(terms, " e ")
	searchURL := f.cfg.BaseURL + "/cdje/consultaAvancada.do"

	taskCtx, cancel := f.newTask(ctx)
	defer cancel()

	var html string
	actions := []chromedp.Action{
		f.sessionSetup(),
		chromedp.Navigate(searchURL),
		chromedp.WaitVisible(`#dtInicioString`, chromedp.ByID),
		chromedp.SetValue(`#dtInicioString`, gazetteDate, chromedp.ByID),
		chromedp.SetValue(`#dtFimString`, gazetteDate, chromedp.ByID),
		chromedp.SetValue(`#procura`, keywords, chromedp.ByID),
		chromedp.Click(`form[name="consultaAvancadaForm"] input[type="submit"]`, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, f.classify("search", searchURL, err)
	}

	if noResultsRe.MatchString(html) {
		return nil, pipeline.ErrNoResults
	}
	links := extractResultLinks(html, f.cfg.BaseURL)
	if len(links) == 0 {
		return nil, pipeline.ErrNoResults
	}
	return links, nil
}

// FetchDocument walks a result's page viewer, collecting the rendered text
// of every page with a fixed delay between page loads.
func (f *Fetcher) FetchDocument(ctx context.Context, link pipeline.ResultLink) (pipeline.Document, error) {
	doc := pipeline.Document{Link: link}

	first, total, err := f.fetchViewerPage(ctx, link.URL)
	if err != nil {
		return pipeline.Document{}, err
	}
	doc.Pages = append(doc.Pages, first)

	for page := 2; page <= total; page++ {
		select {
		case <-ctx.Done():
			return pipeline.Document{}, &pipeline.FetchError{Op: "fetch document", URL: link.URL, Err: ctx.Err()}
		case <-time.After(f.cfg.PageDelay):
		}
		pageURL := withPageParam(link.URL, page)
		text, _, err := f.fetchViewerPage(ctx, pageURL)
		if err != nil {
			return pipeline.Document{}, err
		}
		doc.Pages = append(doc.Pages, text)
	}
	return doc, nil
}

// fetchViewerPage renders one viewer page and reports the total page count
// advertised by the pager.
func (f *Fetcher) fetchViewerPage(ctx context.Context, pageURL string) (string, int, error) {
	taskCtx, cancel := f.newTask(ctx)
	defer cancel()

	var text string
	actions := []chromedp.Action{
		f.sessionSetup(),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.Text("body", &text, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return "", 0, f.classify("fetch document", pageURL, err)
	}

	total := 1
	if m := totalPagesRe.FindStringSubmatch(text); m != nil {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil {
			total = n
		}
	}
	return text, total, nil
}

func (f *Fetcher) newTask(ctx context.Context) (context.Context, context.CancelFunc) {
	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	timeoutCtx, timeoutCancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	stop := context.AfterFunc(ctx, timeoutCancel)
	return timeoutCtx, func() {
		stop()
		timeoutCancel()
		taskCancel()
	}
}

func (f *Fetcher) sessionSetup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// classify maps browser failures onto the fetch-error taxonomy: timeouts are
// retryable, everything structural is not.
func (f *Fetcher) classify(op, u string, err error) error {
	retryable := errors.Is(err, context.DeadlineExceeded)
	return &pipeline.FetchError{Op: op, URL: u, Retryable: retryable, Err: err}
}

// resultLinkRe finds viewer links in the rendered result list.
var resultLinkRe = regexp.MustCompile(`href="(/cdje/consultaSimples\.do\?[^"]+)"`)

func extractResultLinks(html, baseURL string) []pipeline.ResultLink {
	var links []pipeline.ResultLink
	seen := map[string]bool{}
	for _, m := range resultLinkRe.FindAllStringSubmatch(html, -1) {
		href := strings.ReplaceAll(m[1], "&amp;", "&")
		if seen[href] {
			continue
		}
		seen[href] = true
		links = append(links, pipeline.ResultLink{URL: baseURL + href})
	}
	return links
}

func withPageParam(rawURL string, page int) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("nuSeqpagina", fmt.Sprint(page))
	u.RawQuery = q.Encode()
	return u.String()
}
