package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nasa-jpl/pulselab/pulsegen"
	"github.com/nasa-jpl/pulselab/spincore"
)

func testConfig() Config {
	c := defaults()
	c.Sequences = []Sequence{
		{Endpoint: "odmr/pwm", Type: "pwm", Settings: map[string]float64{"frequency": 1000}},
		{Endpoint: "/odmr/rabi/", Type: "Rabi"},
	}
	return c
}

func TestBuildMuxServesEverySequence(t *testing.T) {
	c := testConfig()
	board := spincore.NewMock(c.genConfig().Clock)
	mux, err := BuildMux(c, board)
	if err != nil {
		t.Fatal(err)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/endpoints", nil))
	graph := map[string][]string{}
	if err := json.NewDecoder(w.Body).Decode(&graph); err != nil {
		t.Fatal(err)
	}
	for _, stem := range []string{"/odmr/pwm", "/odmr/rabi"} {
		if len(graph[stem]) == 0 {
			t.Errorf("expected routes under %s, got %v", stem, graph)
		}
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/odmr/rabi/program", strings.NewReader("")))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	if _, running := board.Loaded(); !running {
		t.Error("expected the board running after programming")
	}
}

func TestConfiguredSettingsApplied(t *testing.T) {
	c := testConfig()
	sess, err := NewSession(c, c.Sequences[0], spincore.NewMock(c.genConfig().Clock))
	if err != nil {
		t.Fatal(err)
	}
	if f, _ := sess.Get("frequency"); f != 1000 {
		t.Errorf("expected frequency 1000 from the config, got %g", f)
	}
}

func TestBuildMuxErrors(t *testing.T) {
	board := spincore.NewMock(defaults().genConfig().Clock)

	c := defaults()
	c.Sequences = []Sequence{{Endpoint: "a", Type: "ramsey"}}
	if _, err := BuildMux(c, board); !errors.Is(err, pulsegen.ErrUnknownGenerator) {
		t.Errorf("expected ErrUnknownGenerator, got %v", err)
	}

	c.Sequences = []Sequence{{Endpoint: "a", Type: "pwm"}, {Endpoint: "/a/", Type: "t1"}}
	if _, err := BuildMux(c, board); err == nil {
		t.Error("expected an error for a duplicated endpoint")
	}

	c.Sequences = []Sequence{{Endpoint: "a", Type: "pwm", Settings: map[string]float64{"duty_cycle": -1}}}
	if _, err := BuildMux(c, board); !errors.Is(err, pulsegen.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}

	c.Sequences = nil
	if _, err := BuildMux(c, board); err == nil {
		t.Error("expected an error with no sequences")
	}
}
