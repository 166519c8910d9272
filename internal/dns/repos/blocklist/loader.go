package blocklist

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hawknest/rrdns/internal/dns/common/clock"
	"github.com/hawknest/rrdns/internal/dns/common/log"
	"github.com/hawknest/rrdns/internal/dns/domain"
	"github.com/hawknest/rrdns/internal/dns/repos/blocklist/parsers"
)

// httpTimeout bounds a single feed fetch during LoadAll.
const httpTimeout = 15 * time.Second

// LoadAll reads every rule file under dir plus every remote feed in urls,
// aggregates them into a single rule set, and atomically replaces repo's
// contents via UpdateAll. Files and feeds are parsed as either hosts-format
// (lines beginning with an IP) or plain one-name-per-line lists, chosen per
// source from its name alone: a file name or feed URL that contains "hosts"
// (case-insensitive) is parsed with ParseHostsFile, everything else with
// ParsePlainList. The contents are not inspected to pick the format.
func LoadAll(repo Repository, dir string, urls []string, clk clock.Clock, logger log.Logger, version uint64) error {
	var rules []domain.BlockRule

	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Warn(map[string]any{"dir": dir}, "Blocklist directory does not exist, skipping")
			} else {
				return fmt.Errorf("reading blocklist directory %s: %w", dir, err)
			}
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			f, err := os.Open(path)
			if err != nil {
				logger.Warn(map[string]any{"file": path, "error": err}, "Failed to open blocklist file")
				continue
			}
			parsed, err := parseSource(f, path, entry.Name(), logger, clk)
			f.Close()
			if err != nil {
				logger.Warn(map[string]any{"file": path, "error": err}, "Failed to parse blocklist file")
				continue
			}
			rules = append(rules, parsed...)
		}
	}

	client := &http.Client{Timeout: httpTimeout}
	for _, u := range urls {
		resp, err := client.Get(u)
		if err != nil {
			logger.Warn(map[string]any{"url": u, "error": err}, "Failed to fetch blocklist feed")
			continue
		}
		parsed, err := parseSource(resp.Body, u, u, logger, clk)
		resp.Body.Close()
		if err != nil {
			logger.Warn(map[string]any{"url": u, "error": err}, "Failed to parse blocklist feed")
			continue
		}
		rules = append(rules, parsed...)
	}

	return repo.UpdateAll(rules, version, clk.Now().Unix())
}

func parseSource(r io.Reader, source, name string, logger log.Logger, clk clock.Clock) ([]domain.BlockRule, error) {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".hosts") || strings.Contains(lower, "hosts") {
		return parsers.ParseHostsFile(r, source, logger, clk.Now())
	}
	return parsers.ParsePlainList(r, source, logger, clk.Now())
}
