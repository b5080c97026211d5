package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Defaults are values remembered between runs, stored as a JSON object
type Defaults struct {
	mu   sync.RWMutex
	path string
	data map[string]any
}

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	defaultModel        = "model"
	defaultConversation = "conversation"
	defaultTools        = "tools"
	defaultSkills       = "skills"
	defaultAccessToken  = "access_token"
	defaultRefreshToken = "refresh_token"
	defaultExpiry       = "expiry"
)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewDefaults loads the defaults from path. A missing file is empty.
func NewDefaults(path string) (*Defaults, error) {
	d := &Defaults{
		path: path,
		data: make(map[string]any),
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return d, nil
	} else if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &d.data); err != nil {
			return nil, err
		}
	}
	return d, nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// GetString returns a string value, or empty if missing or not a string
func (d *Defaults) GetString(key string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, _ := d.data[key].(string)
	return v
}

// GetStrings returns a list of strings, skipping any other values
func (d *Defaults) GetStrings(key string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	values, _ := d.data[key].([]any)
	result := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

// Set stores values and writes the file. A nil or empty value removes the
// key.
func (d *Defaults) Set(kv map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, v := range kv {
		switch v := v.(type) {
		case nil:
			delete(d.data, k)
		case string:
			if v == "" {
				delete(d.data, k)
			} else {
				d.data[k] = v
			}
		case []string:
			if len(v) == 0 {
				delete(d.data, k)
			} else {
				values := make([]any, len(v))
				for i := range v {
					values[i] = v[i]
				}
				d.data[k] = values
			}
		default:
			d.data[k] = v
		}
	}
	return d.save()
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// save writes the file, readable only by the user as it may hold tokens
func (d *Defaults) save() error {
	if err := os.MkdirAll(filepath.Dir(d.path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(d.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(d.path, data, 0600)
}
