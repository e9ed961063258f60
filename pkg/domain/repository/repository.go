package repository

import "github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"

// AccessResultWriter persists completed fetches
type AccessResultWriter interface {
	// Write writes a single access result
	Write(result *entity.AccessResult) error
	// Flush ensures all buffered data is written
	Flush() error
	// Close closes the writer
	Close() error
}
