package vocab

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Load reads and validates a dataset file.
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "dataset file not found", Path: path}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error(), Path: path}
	}

	ds, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, err
	}
	ds.source = path
	return ds, nil
}

// Parse validates and decodes a dataset from JSON.
func Parse(data []byte) (*Dataset, error) {
	if msgs := Validate(data); len(msgs) > 0 {
		code := ErrCodeSchema
		if !json.Valid(data) {
			code = ErrCodeParse
		}
		return nil, &LoadError{Code: code, Message: strings.Join(msgs, "; ")}
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Message: fmt.Sprintf("decode entries: %v", err)}
	}
	if len(entries) == 0 {
		return nil, &LoadError{Code: ErrCodeEmpty, Message: "dataset has no entries"}
	}

	return NewDataset(entries), nil
}
