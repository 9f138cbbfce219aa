package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/rightsbot/internal/adapter/utils"
	"github.com/akolanti/rightsbot/internal/domain/commonModels"
	"github.com/akolanti/rightsbot/pkg/logger_i"
)

type Page struct {
	Number  int    `json:"number"`
	Content string `json:"content"`
}

type LoadedDocument struct {
	Doc   commonModels.Document
	Pages []Page
}

var logger = logger_i.NewLogger("Document Ingestion")

func getDocType(docPath string) commonModels.DocType {
	ext := strings.ToLower(filepath.Ext(docPath))
	switch ext {
	case ".pdf":
		return commonModels.PDF
	case ".docx", ".odt", ".rtf":
		return commonModels.DOCX
	case ".txt", ".md":
		return commonModels.TXT
	case ".csv":
		return commonModels.CSV
	case ".json":
		return commonModels.JSON
	default:
		return commonModels.ERR
	}
}

// Supported reports whether the file extension has an extractor
func Supported(path string) bool {
	return getDocType(path) != commonModels.ERR
}

func extractText(path string, contentType commonModels.DocType) ([]Page, error) {
	switch contentType {
	case commonModels.PDF:
		return extractPDF(path)
	case commonModels.DOCX:
		return extractDocxOdtRtf(path)
	case commonModels.TXT:
		return extractPlainText(path)
	case commonModels.CSV:
		return extractCSV(path)
	case commonModels.JSON:
		return extractJSON(path)
	default:
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}
}

// LoadDocument extracts the pages of one file, name is the display name stored with its chunks
func LoadDocument(ctx context.Context, name string, path string) (LoadedDocument, error) {
	log := logger.WithTrace(ctx).With("path", path)

	if _, err := os.Stat(path); err != nil {
		return LoadedDocument{}, fmt.Errorf("document %s: %w", path, err)
	}
	docType := getDocType(path)
	if docType == commonModels.ERR {
		return LoadedDocument{}, fmt.Errorf("document %s: unsupported file type %q", path, filepath.Ext(path))
	}

	pages, err := extractText(path, docType)
	if err != nil {
		return LoadedDocument{}, fmt.Errorf("document %s: %w", path, err)
	}

	nonEmpty := pages[:0]
	for _, p := range pages {
		if strings.TrimSpace(p.Content) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	log.Debug("Document loaded", "type", docType, "pages", len(nonEmpty))

	if name == "" {
		name = filepath.Base(path)
	}
	return LoadedDocument{
		Doc: commonModels.Document{
			Id:                  utils.GetNewUUID(),
			Name:                name,
			LastIngestTimestamp: time.Now().UTC(),
			ContentType:         docType,
		},
		Pages: nonEmpty,
	}, nil
}

// LoadDocuments loads every path in order, documents without any text are skipped
func LoadDocuments(ctx context.Context, paths []string) ([]LoadedDocument, error) {
	docs := make([]LoadedDocument, 0, len(paths))
	for _, path := range paths {
		doc, err := LoadDocument(ctx, "", path)
		if err != nil {
			return nil, err
		}
		if len(doc.Pages) == 0 {
			logger.WithTrace(ctx).Warn("Document has no text, skipping", "path", path)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
