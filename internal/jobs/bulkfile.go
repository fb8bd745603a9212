package jobs

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// ParseBulkFile decodes a bulk import body into its URL list. Two shapes are
// accepted: a JSON string array, or newline-delimited URLs with blank lines
// and #-comments ignored. A malformed body or any invalid URL fails the whole
// parse; partial acceptance would silently renumber rows.
func ParseBulkFile(data []byte, maxURLs int) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("bulk file is empty")
	}

	var urls []string
	var err error
	if trimmed[0] == '[' {
		urls, err = parseJSONArray(trimmed)
	} else {
		urls, err = parseLines(trimmed)
	}
	if err != nil {
		return nil, err
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("bulk file contains no URLs")
	}
	if maxURLs > 0 && len(urls) > maxURLs {
		return nil, fmt.Errorf("bulk file has %d URLs, limit is %d", len(urls), maxURLs)
	}

	for i, raw := range urls {
		if err := validateURL(raw); err != nil {
			return nil, fmt.Errorf("url %d: %w", i+1, err)
		}
	}

	return urls, nil
}

func parseJSONArray(data []byte) ([]string, error) {
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return nil, fmt.Errorf("parse JSON array: %w", err)
	}
	return urls, nil
}

func parseLines(data []byte) ([]string, error) {
	urls := make([]string, 0)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan lines: %w", err)
	}

	return urls, nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL %q: scheme must be http or https", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return nil
}
