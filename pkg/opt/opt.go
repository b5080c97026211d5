// Package opt implements per-call options, stored as url.Values so that
// they can be forwarded to query strings unchanged.
package opt

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	// Packages
	aitemplate "github.com/mutablelogic/go-aitemplate"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt sets a per-call option
type Opt func(*opts) error

// set of options
type opts struct {
	url.Values
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// Apply returns a structure of applied options. Nil options are skipped.
func Apply(o ...Opt) (*opts, error) {
	opts := &opts{Values: make(url.Values)}
	for _, opt := range o {
		if opt == nil {
			continue
		}
		if err := opt(opts); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// GetBool returns the boolean value for key, or false if not set or invalid
func (o *opts) GetBool(key string) bool {
	if values, ok := o.Values[key]; ok && len(values) > 0 {
		v, err := strconv.ParseBool(strings.TrimSpace(values[0]))
		return err == nil && v
	}
	return false
}

// GetDuration returns the duration value for key, or 0 if not set or invalid
func (o *opts) GetDuration(key string) time.Duration {
	if values, ok := o.Values[key]; ok && len(values) > 0 {
		if v, err := time.ParseDuration(strings.TrimSpace(values[0])); err == nil {
			return v
		}
	}
	return 0
}

////////////////////////////////////////////////////////////////////////////////
// OPTIONS

func WithBool(key string, value bool) Opt {
	return func(o *opts) error {
		o.Values.Set(key, strconv.FormatBool(value))
		return nil
	}
}

// WithDuration sets a non-negative duration for key
func WithDuration(key string, value time.Duration) Opt {
	return func(o *opts) error {
		if value < 0 {
			return aitemplate.ErrBadParameter.Withf("%s: negative duration %v", key, value)
		}
		o.Values.Set(key, value.String())
		return nil
	}
}
