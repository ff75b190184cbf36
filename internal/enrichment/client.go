// Package enrichment looks up case details on the court's public case portal
// to fill gaps left by gazette extraction.
package enrichment

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/andrelmbackes/rpv-crawler/internal/parser"
	"github.com/andrelmbackes/rpv-crawler/internal/pipeline"
)

// Config controls portal lookups.
type Config struct {
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	LookupDelay time.Duration
}

const (
	defaultBaseURL     = "https://esaj.tjsp.jus.br"
	defaultTimeout     = 15 * time.Second
	defaultLookupDelay = 2 * time.Second
)

// sealedCaseRe matches the portal's access-denied and not-found banners.
var sealedCaseRe = regexp.MustCompile(`(?i)segredo\s+de\s+justi[çc]a|n[ãa]o\s+existem\s+informa[çc][õo]es\s+dispon[íi]veis`)

var availabilityRe = regexp.MustCompile(`(?i)disponibiliza[çc][ãa]o:?\s*(\d{2}/\d{2}/\d{4})`)

// Client implements pipeline.Enricher against the case portal. Lookups are
// serialized with a fixed delay between requests; the portal throttles
// aggressive clients.
type Client struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger

	mu         sync.Mutex
	lastLookup time.Time
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.LookupDelay <= 0 {
		cfg.LookupDelay = defaultLookupDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))

	return &Client{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Lookup fetches the public case page for one process number and extracts
// lawyers, amounts, and dates from it. A sealed or unknown case returns
// pipeline.ErrNotFound.
func (c *Client) Lookup(ctx context.Context, processNumber string) (pipeline.SecondaryRecord, error) {
	if !pipeline.ValidProcessNumber(processNumber) {
		return pipeline.SecondaryRecord{}, fmt.Errorf("malformed process number %q", processNumber)
	}
	if err := c.pace(ctx); err != nil {
		return pipeline.SecondaryRecord{}, err
	}

	lookupURL, err := c.lookupURL(processNumber)
	if err != nil {
		return pipeline.SecondaryRecord{}, err
	}

	body, status, err := c.fetch(ctx, lookupURL)
	if err != nil {
		return pipeline.SecondaryRecord{}, &pipeline.FetchError{
			Op:        "enrichment lookup",
			URL:       lookupURL,
			Retryable: status == 0 || status >= http.StatusInternalServerError,
			Err:       err,
		}
	}
	if sealedCaseRe.Match(body) {
		return pipeline.SecondaryRecord{}, pipeline.ErrNotFound
	}

	record, err := parseCasePage(body, processNumber)
	if err != nil {
		return pipeline.SecondaryRecord{}, err
	}
	c.logger.Debug("case looked up",
		zap.String("process_number", processNumber),
		zap.Int("lawyers", len(record.Lawyers)),
		zap.Int("amounts", len(record.Amounts)),
	)
	return record, nil
}

// pace enforces the minimum spacing between portal requests.
func (c *Client) pace(ctx context.Context) error {
	c.mu.Lock()
	wait := c.cfg.LookupDelay - time.Since(c.lastLookup)
	if wait < 0 {
		wait = 0
	}
	c.lastLookup = time.Now().Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// lookupURL builds the unified-number query. The portal splits the canonical
// number into the leading NNNNNNN-DD.YYYY block and the trailing forum code.
func (c *Client) lookupURL(processNumber string) (string, error) {
	u, err := url.Parse(c.cfg.BaseURL + "/cpopg/search.do")
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	q := u.Query()
	q.Set("conversationId", "")
	q.Set("cbPesquisa", "NUMPROC")
	q.Set("dadosConsulta.tipoNuProcesso", "UNIFICADO")
	q.Set("numeroDigitoAnoUnificado", processNumber[:15])
	q.Set("foroNumeroUnificado", processNumber[len(processNumber)-4:])
	q.Set("dadosConsulta.valorConsultaNuUnificado", processNumber)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) fetch(ctx context.Context, lookupURL string) ([]byte, int, error) {
	collector := c.baseCollector.Clone()
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.SetRequestTimeout(c.cfg.Timeout)

	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(lookupURL)
	}()

	select {
	case <-ctx.Done():
		return nil, status, ctx.Err()
	case err := <-done:
		if err != nil {
			return nil, status, err
		}
		if fetchErr != nil {
			return nil, status, fetchErr
		}
		return body, status, nil
	}
}

// parseCasePage extracts the secondary record from the rendered case page.
func parseCasePage(body []byte, processNumber string) (pipeline.SecondaryRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pipeline.SecondaryRecord{}, &pipeline.ParseError{Err: fmt.Errorf("parse case page: %w", err)}
	}

	record := pipeline.SecondaryRecord{ProcessNumber: processNumber}

	partiesText := sectionText(doc, "#tableTodasPartes")
	if partiesText == "" {
		partiesText = sectionText(doc, "#tablePartesPrincipais")
	}
	record.Lawyers = parser.ExtractLawyers(partiesText)

	movementsText := sectionText(doc, "#tabelaTodasMovimentacoes")
	if movementsText == "" {
		movementsText = sectionText(doc, "#tabelaUltimasMovimentacoes")
	}
	record.Amounts = parser.ExtractAmounts(movementsText)
	for i := range record.Amounts {
		record.Amounts[i].Source = pipeline.SourceSecondary
	}

	record.PublicationDate = movementDate(doc)
	if m := availabilityRe.FindStringSubmatch(movementsText); m != nil {
		record.AvailabilityDate = toISODate(m[1])
	}

	if len(record.Lawyers) == 0 && len(record.Amounts) == 0 &&
		record.PublicationDate == "" && record.AvailabilityDate == "" {
		return pipeline.SecondaryRecord{}, pipeline.ErrNotFound
	}
	return record, nil
}

// movementDate returns the date of the most recent movement, which the
// portal lists first.
func movementDate(doc *goquery.Document) string {
	date := ""
	doc.Find("td.dataMovimentacao, td.dataMovimentacaoProcesso").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		date = toISODate(strings.TrimSpace(s.Text()))
		return date == ""
	})
	return date
}

func sectionText(doc *goquery.Document, selector string) string {
	var parts []string
	doc.Find(selector).Find("td").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n")
}

// toISODate converts the portal's DD/MM/YYYY dates to the canonical layout.
func toISODate(s string) string {
	t, err := time.Parse("02/01/2006", s)
	if err != nil {
		return ""
	}
	return t.Format(pipeline.DateLayout)
}
