package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"
	"github.com/klauspost/compress/gzip"
)

const maxResultLine = 4 << 20

// ReadResults loads the access results written by a ResultWriter. Blank
// lines are skipped; a ".gz" suffix is read through gzip.
func ReadResults(path string) ([]*entity.AccessResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	var results []*entity.AccessResult
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxResultLine)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var res entity.AccessResult
		if err := json.Unmarshal([]byte(text), &res); err != nil {
			return nil, fmt.Errorf("failed to parse %s line %d: %w", path, line, err)
		}
		results = append(results, &res)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return results, nil
}
