package symbol

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/yanun0323/errors"

	"tob/internal/schema"
	"tob/pkg/exception"
)

// LoadCSV parses "SYMBOL,INDEX[,LOCATE]" lines. Blank lines and lines starting
// with '#' are ignored.
func LoadCSV(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var entries []Entry
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "read symbol csv")
		}
		line, _ := reader.FieldPos(0)

		entry, err := parseEntry(record)
		if err != nil {
			return nil, errors.Wrapf(err, "symbol csv line %d", line)
		}
		entries = append(entries, entry)
	}
}

// LoadFile reads a symbol CSV file.
func LoadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open symbol file").With("path", path)
	}
	defer f.Close()
	return LoadCSV(f)
}

func parseEntry(record []string) (Entry, error) {
	if len(record) < 2 || len(record) > 3 {
		return Entry{}, exception.ErrSymbolFormat
	}

	stock, err := schema.NewStock(record[0])
	if err != nil {
		return Entry{}, err
	}

	index, err := strconv.ParseUint(strings.TrimSpace(record[1]), 10, 16)
	if err != nil {
		return Entry{}, errors.Wrap(exception.ErrSymbolFormat, "index").With("value", record[1])
	}

	entry := Entry{Index: schema.SymbolIndex(index), Stock: stock}
	if len(record) == 3 && strings.TrimSpace(record[2]) != "" {
		locate, err := strconv.ParseUint(strings.TrimSpace(record[2]), 10, 16)
		if err != nil {
			return Entry{}, errors.Wrap(exception.ErrSymbolFormat, "locate").With("value", record[2])
		}
		entry.Locate = uint16(locate)
	}
	return entry, nil
}
