package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/WangYihang/Crawl-Frontier/pkg/crawlerr"
	"github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"
	"github.com/WangYihang/Crawl-Frontier/pkg/domain/repository"
	"github.com/klauspost/compress/gzip"
)

// ResultWriter implements repository.AccessResultWriter as JSON lines.
// "-" writes to stdout; a ".gz" suffix gzips the output.
type ResultWriter struct {
	path    string
	file    *os.File
	gz      *gzip.Writer
	buf     *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewResultWriter creates a new result writer
func NewResultWriter(path string) (repository.AccessResultWriter, error) {
	w := &ResultWriter{path: path}
	if path == "-" {
		w.file = os.Stdout
	} else {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return nil, crawlerr.NewSystem(fmt.Sprintf("could not open %s", path), err)
		}
		w.file = file
	}

	var out io.Writer = w.file
	if strings.HasSuffix(path, ".gz") {
		w.gz = gzip.NewWriter(w.file)
		out = w.gz
	}
	w.buf = bufio.NewWriter(out)
	w.encoder = json.NewEncoder(w.buf)
	return w, nil
}

// Write writes a single result
func (w *ResultWriter) Write(result *entity.AccessResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.encoder.Encode(result)
}

// Flush ensures all buffered data is written
func (w *ResultWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.flush()
}

func (w *ResultWriter) flush() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if w.gz != nil {
		if err := w.gz.Flush(); err != nil {
			return err
		}
	}
	if w.path == "-" {
		return nil
	}
	return w.file.Sync()
}

// Close flushes and closes the writer (stdout is left open)
func (w *ResultWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.buf.Flush(); err != nil {
		return err
	}
	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			return err
		}
	}
	if w.path == "-" {
		return nil
	}
	return w.file.Close()
}
