package pulsegen

import (
	"fmt"
	"sort"

	"github.com/nasa-jpl/pulselab/util"
	"go.uber.org/multierr"
)

// time units, multiply a setting by one of these to get ns
const (
	ns = 1.
	us = 1e3
)

// Param declares one named setting of a generator
type Param struct {
	// Name is the key of the setting
	Name string `json:"name"`

	// Unit is the unit the setting is expressed in, e.g. "us"
	Unit string `json:"unit"`

	// Default is the value used when the setting is not given
	Default float64 `json:"default"`

	// Limits is the allowed range, the zero value allows anything
	Limits util.Limiter `json:"limits"`

	// Description is a short human readable description
	Description string `json:"description,omitempty"`
}

// Settings holds the values of a generator's params, by name
type Settings map[string]float64

// Clone returns a copy of s
func (st Settings) Clone() Settings {
	out := make(Settings, len(st))
	for k, v := range st {
		out[k] = v
	}
	return out
}

// Names returns the setting names in alphabetical order
func (st Settings) Names() []string {
	out := make([]string, 0, len(st))
	for k := range st {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Defaults returns the default settings for a list of params
func Defaults(params []Param) Settings {
	out := make(Settings, len(params))
	for _, p := range params {
		out[p.Name] = p.Default
	}
	return out
}

// Validate checks that every setting is a declared param and is within its
// limits.  All violations are reported.
func Validate(params []Param, st Settings) error {
	lut := make(map[string]Param, len(params))
	for _, p := range params {
		lut[p.Name] = p
	}
	var err error
	for _, name := range st.Names() {
		v := st[name]
		p, ok := lut[name]
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%w: %q", ErrUnknownSetting, name))
			continue
		}
		if !p.Limits.Check(v) {
			err = multierr.Append(err, fmt.Errorf("%w: %s=%v %s, allowed [%v,%v]", ErrOutOfRange, name, v, p.Unit, p.Limits.Min, p.Limits.Max))
		}
	}
	return err
}

// merge overlays st onto the defaults of params
func merge(params []Param, st Settings) Settings {
	out := Defaults(params)
	for k, v := range st {
		out[k] = v
	}
	return out
}
