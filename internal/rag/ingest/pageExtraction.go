package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

const pageExtractTimeout = 10 * time.Second

func extractPDF(path string) ([]Page, error) {
	logger.Debug("extractPDF", "attempting extraction", path)
	f, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []Page
	numPages := f.NumPage()
	logger.Debug("extractPDF", "number of pages", numPages)
	for i := 1; i <= numPages; i++ {
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := protectExtract(page)
		if err != nil {
			logger.Error("Error parsing page content", "page", i, "error", err)
			continue
		}

		pages = append(pages, Page{
			Number:  i,
			Content: content,
		})
	}
	return pages, nil
}

func extractPlainText(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text: %w", err)
	}
	return []Page{{Number: 1, Content: string(data)}}, nil
}

// extractDocxOdtRtf reads a .odt, .docx or .rtf file as one page
func extractDocxOdtRtf(path string) ([]Page, error) {
	text, err := cat.File(path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}
	return []Page{{Number: 1, Content: text}}, nil
}

func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(pageExtractTimeout):
		return "", errors.New("page extraction timeout")
	}
}

func extractCSV(path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	text, err := renderCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv %s: %w", path, err)
	}
	return []Page{{Number: 1, Content: text}}, nil
}

// renderCSV writes every data row as "column: value" lines, rows separated by a blank line
func renderCSV(r io.Reader) (string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		var b strings.Builder
		for i, value := range record {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			name := fmt.Sprintf("column %d", i+1)
			if i < len(header) && header[i] != "" {
				name = header[i]
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(name + ": " + value)
		}
		if b.Len() > 0 {
			rows = append(rows, b.String())
		}
	}
	return strings.Join(rows, "\n\n"), nil
}

func extractJSON(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read json: %w", err)
	}
	text, err := renderJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse json %s: %w", path, err)
	}
	return []Page{{Number: 1, Content: text}}, nil
}

// renderJSON renders an array of objects one object per block with its keys in file order,
// anything else is kept as indented text
func renderJSON(data []byte) (string, error) {
	if !json.Valid(data) {
		return "", errors.New("invalid json")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		var out bytes.Buffer
		if err = json.Indent(&out, data, "", "  "); err != nil {
			return "", err
		}
		return out.String(), nil
	}

	blocks := make([]string, 0, len(items))
	for _, item := range items {
		block, err := renderJSONObject(item)
		if err != nil {
			return "", err
		}
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n"), nil
}

func renderJSONObject(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return jsonScalar(raw), nil
	}

	var lines []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return "", err
		}
		key, _ := keyTok.(string)
		var value json.RawMessage
		if err = dec.Decode(&value); err != nil {
			return "", err
		}
		if v := jsonScalar(value); v != "" {
			lines = append(lines, key+": "+v)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func jsonScalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	if string(raw) == "null" {
		return ""
	}
	var out bytes.Buffer
	if err := json.Compact(&out, raw); err != nil {
		return string(raw)
	}
	return out.String()
}
