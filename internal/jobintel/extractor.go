// Package jobintel turns a pasted job posting or job URL into usable
// context: extracted text, a structured summary, and tailored starter
// prompts. All of it is optional garnish - extraction failure never fails
// session creation.
package jobintel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"resume-agent/internal/sanitize"
)

const (
	maxPageBytes     = 500 * 1024
	maxExtractedRune = 15000
	fetchTimeout     = 15 * time.Second
)

// blockedURL matches internal hosts, private ranges, and cloud metadata
// endpoints. Checked on the request URL and again after redirects.
var blockedURL = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^https?://localhost`),
	regexp.MustCompile(`^https?://127\.`),
	regexp.MustCompile(`^https?://10\.`),
	regexp.MustCompile(`^https?://192\.168\.`),
	regexp.MustCompile(`^https?://172\.(1[6-9]|2[0-9]|3[0-1])\.`),
	regexp.MustCompile(`^https?://\[::1\]`),
	regexp.MustCompile(`^https?://169\.254\.`),
	regexp.MustCompile(`(?i)^file://`),
}

var scriptStyleRe = regexp.MustCompile(`(?is)<(script|style|nav|header|footer)[^>]*>.*?</(script|style|nav|header|footer)>`)

// IsURL reports whether text looks like an http(s) URL.
func IsURL(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://")
}

// Extractor fetches job-posting pages. The blocklist is replaceable so
// loopback servers can stand in for real pages under test.
type Extractor struct {
	httpClient *http.Client
	blocklist  []*regexp.Regexp
}

func NewExtractor() *Extractor {
	e := &Extractor{blocklist: blockedURL}
	e.httpClient = &http.Client{
		Timeout: fetchTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if e.isBlocked(req.URL.String()) {
				return fmt.Errorf("redirect to blocked url")
			}
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
	return e
}

func (e *Extractor) isBlocked(url string) bool {
	for _, re := range e.blocklist {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

// ExtractFromURL fetches a job posting and returns readable text. The error
// string is user-facing and non-fatal; exactly one of (text, errMsg) is
// non-empty.
func (e *Extractor) ExtractFromURL(ctx context.Context, url string) (text string, errMsg string) {
	url = strings.TrimSpace(url)
	if e.isBlocked(url) {
		return "", "This URL is not accessible. Please paste the job text."
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "Could not load page. Please paste the job description."
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil || strings.Contains(err.Error(), "Client.Timeout") {
			return "", "Page took too long to load. Please paste the job text instead."
		}
		return "", "Could not connect to the page. Please paste the job text."
	}
	defer resp.Body.Close()

	// Re-validate after redirects (open-redirect SSRF).
	if e.isBlocked(resp.Request.URL.String()) {
		return "", "Redirected to inaccessible URL. Please paste the job text."
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return "", "Page requires login. Please paste the job text instead."
	case resp.StatusCode == http.StatusNotFound:
		return "", "Page not found. Please check the URL or paste the job text."
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Sprintf("Could not load page (HTTP %d). Please paste the job text.", resp.StatusCode)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/json") {
		return "", "This link doesn't contain readable text. Please paste the job description."
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes+1))
	if err != nil {
		return "", "Failed to load page. Please paste the job description."
	}
	if len(body) > maxPageBytes {
		return "", "Page is too large. Please paste the relevant job description."
	}

	cleaned := CleanHTML(string(body))
	if len(cleaned) < 100 {
		return "", "Could not extract job content. Please paste it manually."
	}

	runes := []rune(cleaned)
	if len(runes) > maxExtractedRune {
		cleaned = string(runes[:maxExtractedRune])
	}
	return cleaned, ""
}

// CleanHTML strips scripts, chrome elements, and all tags, leaving readable
// text.
func CleanHTML(html string) string {
	html = scriptStyleRe.ReplaceAllString(html, " ")
	return sanitize.Block(html)
}
