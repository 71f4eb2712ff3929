package registry

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultBaseURL = "https://opendart.fss.or.kr/api"

	// highDebtRatioThreshold flags a company as leverage-risky.
	highDebtRatioThreshold = 200.0

	// debtRatioIndexClass selects the stability-indicator group.
	debtRatioIndexClass = "M220000"
)

// Report codes in lookup priority: annual, Q3, half-year, Q1. The most
// recent full-year figure is preferred when available.
var reportCodePriority = []string{"11011", "11014", "11012", "11013"}

// Checker is the registry lookup interface the pipeline depends on.
type Checker interface {
	CheckStock(ctx context.Context, name string) (StockCheck, error)
}

// StockCheck is the structured verification outcome for one stock.
type StockCheck struct {
	Name         string   `json:"name"`
	CorpCode     string   `json:"corpCode,omitempty"`
	Listed       bool     `json:"listed"`
	DebtRatio    *float64 `json:"debtRatio,omitempty"`
	HighDebtRisk bool     `json:"highDebtRisk"`
	Alerts       []Alert  `json:"alerts,omitempty"`
}

// Alert is one investment alert designation.
type Alert struct {
	List         string `json:"list"`
	DesignatedAt string `json:"designatedAt,omitempty"`
	ReleasedAt   string `json:"releasedAt,omitempty"`
}

// Client queries the DART open API.
type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client

	mu        sync.Mutex
	corpCodes map[string]string
}

// NewClient constructs a registry client for the given API key.
func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:     apiKey,
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// CheckStock resolves a stock name to its corporation code and gathers its
// debt ratio and investment alert designations. An unresolvable name is a
// valid outcome (Listed=false), not an error; network and decode failures
// are errors.
func (c *Client) CheckStock(ctx context.Context, name string) (StockCheck, error) {
	check := StockCheck{Name: name}

	code, err := c.resolveCorpCode(ctx, name)
	if err != nil {
		return check, err
	}
	if code == "" {
		return check, nil
	}
	check.CorpCode = code
	check.Listed = true

	ratio, err := c.debtRatio(ctx, code)
	if err != nil {
		return check, err
	}
	if ratio != nil {
		check.DebtRatio = ratio
		check.HighDebtRisk = *ratio >= highDebtRatioThreshold
	}

	alerts, err := c.alerts(ctx, code)
	if err != nil {
		return check, err
	}
	check.Alerts = alerts

	return check, nil
}

// resolveCorpCode maps a stock name to its DART corporation code. The full
// listed-company table is fetched once and cached for the process lifetime.
func (c *Client) resolveCorpCode(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.corpCodes == nil {
		codes, err := c.fetchCorpCodes(ctx)
		if err != nil {
			return "", err
		}
		c.corpCodes = codes
	}
	return c.corpCodes[normalizeStockName(name)], nil
}

type corpCodeFile struct {
	Entries []corpCodeEntry `xml:"list"`
}

type corpCodeEntry struct {
	CorpCode  string `xml:"corp_code"`
	CorpName  string `xml:"corp_name"`
	StockCode string `xml:"stock_code"`
}

func (c *Client) fetchCorpCodes(ctx context.Context) (map[string]string, error) {
	query := url.Values{"crtfc_key": {c.APIKey}}
	data, err := c.get(ctx, "/corpCode.xml", query)
	if err != nil {
		return nil, fmt.Errorf("corp codes: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("corp codes: open zip: %w", err)
	}
	var xmlFile *zip.File
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToUpper(f.Name), ".XML") {
			xmlFile = f
			break
		}
	}
	if xmlFile == nil {
		return nil, fmt.Errorf("corp codes: no xml entry in archive")
	}

	rc, err := xmlFile.Open()
	if err != nil {
		return nil, fmt.Errorf("corp codes: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("corp codes: %w", err)
	}

	var parsed corpCodeFile
	if err := xml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("corp codes: decode: %w", err)
	}

	codes := make(map[string]string)
	for _, entry := range parsed.Entries {
		// Unlisted companies carry a blank stock code and are skipped.
		if strings.TrimSpace(entry.StockCode) == "" {
			continue
		}
		codes[normalizeStockName(entry.CorpName)] = entry.CorpCode
	}
	return codes, nil
}

type financialIndexResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	List    []struct {
		IndexName  string `json:"idx_nm"`
		IndexValue string `json:"idx_val"`
	} `json:"list"`
}

const noDataStatus = "013"

// debtRatio looks up the most recent debt ratio, walking report codes in
// priority order for the current business year and then the previous one.
func (c *Client) debtRatio(ctx context.Context, corpCode string) (*float64, error) {
	year := time.Now().Year()
	for _, bsnsYear := range []int{year, year - 1} {
		for _, reportCode := range reportCodePriority {
			query := url.Values{
				"crtfc_key":   {c.APIKey},
				"corp_code":   {corpCode},
				"bsns_year":   {strconv.Itoa(bsnsYear)},
				"reprt_code":  {reportCode},
				"idx_cl_code": {debtRatioIndexClass},
			}
			data, err := c.get(ctx, "/fnlttSinglIndx.json", query)
			if err != nil {
				return nil, fmt.Errorf("debt ratio corp=%s: %w", corpCode, err)
			}

			var parsed financialIndexResponse
			if err := json.Unmarshal(data, &parsed); err != nil {
				return nil, fmt.Errorf("debt ratio corp=%s: decode: %w", corpCode, err)
			}
			if parsed.Status == noDataStatus {
				continue
			}
			if parsed.Status != "000" {
				return nil, fmt.Errorf("debt ratio corp=%s: api status %s: %s", corpCode, parsed.Status, parsed.Message)
			}

			for _, row := range parsed.List {
				if !strings.Contains(row.IndexName, "부채비율") {
					continue
				}
				val, err := strconv.ParseFloat(strings.ReplaceAll(row.IndexValue, ",", ""), 64)
				if err != nil {
					continue
				}
				return &val, nil
			}
		}
	}
	return nil, nil
}

type alertResponse struct {
	Status string `json:"status"`
	List   []struct {
		AlertType       string `json:"alert_type"`
		DesignationDate string `json:"designation_date"`
		ReleaseDate     string `json:"release_date"`
	} `json:"list"`
}

// alerts returns the active investment alert designations for a company.
// The caution list carries only a designation date; warning and risk
// designations carry a release window and expire once released.
func (c *Client) alerts(ctx context.Context, corpCode string) ([]Alert, error) {
	query := url.Values{
		"crtfc_key": {c.APIKey},
		"corp_code": {corpCode},
	}
	data, err := c.get(ctx, "/investAlertStatus.json", query)
	if err != nil {
		return nil, fmt.Errorf("alerts corp=%s: %w", corpCode, err)
	}

	var parsed alertResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("alerts corp=%s: decode: %w", corpCode, err)
	}
	if parsed.Status == noDataStatus {
		return nil, nil
	}

	var alerts []Alert
	for _, row := range parsed.List {
		list := classifyAlertType(row.AlertType)
		if list == "" {
			continue
		}
		if list != "caution" && row.ReleaseDate != "" {
			continue
		}
		alerts = append(alerts, Alert{
			List:         list,
			DesignatedAt: row.DesignationDate,
			ReleasedAt:   row.ReleaseDate,
		})
	}
	return alerts, nil
}

func classifyAlertType(raw string) string {
	switch {
	case strings.Contains(raw, "위험"):
		return "risk"
	case strings.Contains(raw, "경고"):
		return "warning"
	case strings.Contains(raw, "주의"):
		return "caution"
	default:
		return ""
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// normalizeStockName strips corporate prefixes and spacing so spoken stock
// names match the registry's corporate names.
func normalizeStockName(name string) string {
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "(주)", "")
	s = strings.ReplaceAll(s, "㈜", "")
	s = strings.ReplaceAll(s, " ", "")
	return strings.ToLower(s)
}

var _ Checker = (*Client)(nil)
