package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/nasa-jpl/pulselab/generichttp"
	"github.com/nasa-jpl/pulselab/generichttp/sequencer"
	"github.com/nasa-jpl/pulselab/progrec"
	"github.com/nasa-jpl/pulselab/pulse"
	"github.com/nasa-jpl/pulselab/pulsegen"
	"github.com/nasa-jpl/pulselab/server/middleware/locker"
	"github.com/nasa-jpl/pulselab/spincore"
)

// Bridge holds the location of the PulseBlaster bridge process
type Bridge struct {
	// Addr is the network or filesystem address of the bridge,
	// e.g. 192.168.100.123:9000, or /dev/ttyUSB0 for an RS232 link
	Addr string `koanf:"Addr" yaml:"Addr"`

	// Serial determines if the connection is serial/RS232 (True) or TCP (False)
	Serial bool `koanf:"Serial" yaml:"Serial"`
}

// Recorder configures saving a copy of every program written to disk
type Recorder struct {
	// Root is the folder recordings are made in, empty disables recording
	Root string `koanf:"Root" yaml:"Root"`

	// Prefix is prepended to the file names, after which the generator
	// type is added
	Prefix string `koanf:"Prefix" yaml:"Prefix"`

	// Enabled turns recording on at startup; it can be toggled over HTTP
	Enabled bool `koanf:"Enabled" yaml:"Enabled"`
}

// Sequence is one pulse sequence served over HTTP
type Sequence struct {
	// Endpoint is the URL stem the sequence is served under
	// ex. Endpoint="odmr/rabi" produces routes of /odmr/rabi/settings, etc.
	Endpoint string `koanf:"Endpoint" yaml:"Endpoint"`

	// Type is the generator, e.g. rabi
	Type string `koanf:"Type" yaml:"Type"`

	// Settings overrides the defaults of the generator
	Settings map[string]float64 `koanf:"Settings" yaml:"Settings"`
}

// Config is a struct that holds the initialization parameters for the
// server.  It is to be populated by koanf.
type Config struct {
	// Addr is the address to listen at
	Addr string `koanf:"Addr" yaml:"Addr"`

	// Mock replaces the board with a fake that only remembers what it was sent
	Mock bool `koanf:"Mock" yaml:"Mock"`

	// ClockMHz is the core clock of the board
	ClockMHz float64 `koanf:"ClockMHz" yaml:"ClockMHz"`

	// ShortPulseBit is the lowest bit of the short pulse field of the flags,
	// zero if the board has none
	ShortPulseBit uint `koanf:"ShortPulseBit" yaml:"ShortPulseBit"`

	// Channels maps channel names to output bits
	Channels map[string]uint `koanf:"Channels" yaml:"Channels"`

	Bridge Bridge `koanf:"Bridge" yaml:"Bridge"`

	Recorder Recorder `koanf:"Recorder" yaml:"Recorder"`

	// Sequences are the pulse sequences to serve
	Sequences []Sequence `koanf:"Sequences" yaml:"Sequences"`
}

// defaults is the configuration used without a config file
func defaults() Config {
	return Config{
		Addr:          ":8000",
		Mock:          true,
		ClockMHz:      500,
		ShortPulseBit: 21,
		Channels: map[string]uint{
			"AOM":                    0,
			"uW":                     1,
			"DAQ_sig":                2,
			"DAQ_ref":                3,
			"I":                      4,
			"Q":                      5,
			pulsegen.SyncOutChannel: 6,
		},
		Bridge:    Bridge{Addr: "localhost:9000"},
		Recorder:  Recorder{Prefix: "pulses_"},
		Sequences: []Sequence{{Endpoint: "pwm", Type: "pwm"}},
	}
}

// genConfig is the board description generators build for
func (c Config) genConfig() pulsegen.Config {
	return pulsegen.Config{
		Clock:         pulse.Clock{FrequencyMHz: c.ClockMHz},
		Table:         pulse.Table(c.Channels),
		ShortPulseBit: c.ShortPulseBit,
	}
}

// Board is a PulseBlaster or a stand-in for one
type Board interface {
	pulsegen.Programmer
	Close() error
}

type mockBoard struct {
	*spincore.Mock
}

func (mockBoard) Close() error { return nil }

// OpenBoard connects to the board, or a mock of it
func OpenBoard(c Config) (Board, error) {
	clk := pulse.Clock{FrequencyMHz: c.ClockMHz}
	if err := clk.Valid(); err != nil {
		return nil, err
	}
	if c.Mock {
		log.Println("using a mock PulseBlaster, nothing will be output")
		return mockBoard{spincore.NewMock(clk)}, nil
	}
	b := spincore.NewBridge(c.Bridge.Addr, c.Bridge.Serial, clk)
	if err := b.Init(); err != nil {
		return nil, err
	}
	log.Println("connected to PulseBlaster bridge at", c.Bridge.Addr)
	return b, nil
}

// NewSession makes the session for one sequence
func NewSession(c Config, s Sequence, board pulsegen.Programmer) (*pulsegen.Session, error) {
	g, err := pulsegen.Lookup(s.Type)
	if err != nil {
		return nil, err
	}
	sess := pulsegen.NewSession(g, c.genConfig(), board)
	if err = sess.Update(s.Settings); err != nil {
		return nil, fmt.Errorf("sequence %s: %w", s.Endpoint, err)
	}
	return sess, nil
}

// BuildMux constructs a chi router serving every sequence under its
// endpoint.  The mux serves a special route, /endpoints, which returns a map
// of every route as JSON.
func BuildMux(c Config, board pulsegen.Programmer) (chi.Router, error) {
	if len(c.Sequences) == 0 {
		return nil, errors.New("no sequences configured")
	}
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	supergraph := map[string][]string{}

	for _, s := range c.Sequences {
		sess, err := NewSession(c, s, board)
		if err != nil {
			return nil, err
		}
		var rec *progrec.Recorder
		if c.Recorder.Root != "" {
			rec = progrec.New(c.Recorder.Root, c.Recorder.Prefix+sess.Name()+"_", c.Recorder.Enabled)
		}
		httper := sequencer.NewHTTPSequencer(sess, rec)

		// prepare the URL, "odmr/rabi" => "/odmr/rabi"
		hndlS := generichttp.SubMuxSanitize(s.Endpoint)
		if _, ok := supergraph[hndlS]; ok {
			return nil, fmt.Errorf("endpoint %s used twice", hndlS)
		}

		// add a lock interface for this sequence
		lock := locker.New()
		locker.Inject(httper, lock)

		// add the endpoints to the graph
		supergraph[hndlS] = httper.RT().Endpoints()

		r := chi.NewRouter()
		r.Use(lock.Check)
		httper.RT().Bind(r)
		root.Mount(hndlS, r)
	}
	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(supergraph)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	root.Get("/generators", func(w http.ResponseWriter, r *http.Request) {
		generichttp.EncodeJSON(w, pulsegen.Names())
	})
	return root, nil
}
