package sequencer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/pulselab/generichttp"
	"github.com/nasa-jpl/pulselab/progrec"
	"github.com/nasa-jpl/pulselab/pulse"
	"github.com/nasa-jpl/pulselab/pulsegen"
	"github.com/nasa-jpl/pulselab/server/middleware/locker"
	"github.com/nasa-jpl/pulselab/spincore"
)

var cfg = pulsegen.Config{
	Clock: pulse.Clock{FrequencyMHz: 500},
	Table: pulse.Table{"AOM": 0, "uW": 1, "DAQ_sig": 2, "DAQ_ref": 3, "I": 4, "Q": 5, "sync_out": 6},
}

func setup(t *testing.T, rec *progrec.Recorder) (http.Handler, *spincore.Mock) {
	t.Helper()
	board := spincore.NewMock(cfg.Clock)
	sess := pulsegen.NewSession(pulsegen.PWM{}, cfg, board)
	h := NewHTTPSequencer(sess, rec)
	lock := locker.New()
	locker.Inject(h, lock)
	r := chi.NewRouter()
	r.Use(lock.Check)
	h.RT().Bind(r)
	return r, board
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSettingsRoundTrip(t *testing.T) {
	h, _ := setup(t, nil)
	w := do(t, h, http.MethodPost, "/settings", `{"frequency": 1000, "duty_cycle": 25}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	w = do(t, h, http.MethodGet, "/settings/frequency", "")
	f := generichttp.FloatT{}
	if err := json.NewDecoder(w.Body).Decode(&f); err != nil {
		t.Fatal(err)
	}
	if f.F64 != 1000 {
		t.Errorf("expected frequency 1000, got %g", f.F64)
	}
	w = do(t, h, http.MethodGet, "/derived", "")
	st := pulsegen.Settings{}
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st["all_off_padding"] != 750000 {
		t.Errorf("expected derived padding 750000 ns, got %g", st["all_off_padding"])
	}
}

func TestBadSettingIsBadRequest(t *testing.T) {
	h, _ := setup(t, nil)
	w := do(t, h, http.MethodPost, "/settings", `{"duty_cycle": 150}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	w = do(t, h, http.MethodPost, "/settings/bogus", `{"f64": 1}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown setting, got %d", w.Code)
	}
	w = do(t, h, http.MethodGet, "/settings/bogus", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown setting, got %d", w.Code)
	}
}

func TestInstructionsAndDuration(t *testing.T) {
	h, _ := setup(t, nil)
	w := do(t, h, http.MethodGet, "/instructions", "")
	insts := []pulse.Instruction{}
	if err := json.NewDecoder(w.Body).Decode(&insts); err != nil {
		t.Fatal(err)
	}
	if len(insts) != 2 || insts[1].Op != pulse.Branch {
		t.Errorf("expected 2 instructions ending in a branch, got %+v", insts)
	}
	w = do(t, h, http.MethodGet, "/duration", "")
	f := generichttp.FloatT{}
	json.NewDecoder(w.Body).Decode(&f)
	if f.F64 != 2e6 {
		t.Errorf("expected 2e6 ns, got %g", f.F64)
	}
}

func TestProgramLoadsBoard(t *testing.T) {
	h, board := setup(t, nil)
	w := do(t, h, http.MethodPost, "/program", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	sum := generichttp.Uint16T{}
	json.NewDecoder(w.Body).Decode(&sum)
	prog, running := board.Loaded()
	if !running || prog.Checksum() != sum.Uint16 {
		t.Errorf("expected the board running the reported program, running=%v", running)
	}
	w = do(t, h, http.MethodGet, "/loaded", "")
	loaded := generichttp.Uint16T{}
	json.NewDecoder(w.Body).Decode(&loaded)
	if loaded.Uint16 != sum.Uint16 {
		t.Errorf("expected loaded checksum %04X, got %04X", sum.Uint16, loaded.Uint16)
	}
	do(t, h, http.MethodPost, "/stop", "")
	if _, running = board.Loaded(); running {
		t.Error("expected the board stopped")
	}
}

func TestLockBlocksChanges(t *testing.T) {
	h, board := setup(t, nil)
	do(t, h, http.MethodPost, "/lock", `{"bool": true}`)
	w := do(t, h, http.MethodPost, "/program", "")
	if w.Code != http.StatusLocked {
		t.Errorf("expected 423 while locked, got %d", w.Code)
	}
	if board.Writes() != 0 {
		t.Error("board was written while locked")
	}
	w = do(t, h, http.MethodGet, "/plot", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected reads allowed while locked, got %d", w.Code)
	}
	do(t, h, http.MethodPost, "/lock", `{"bool": false}`)
	w = do(t, h, http.MethodPost, "/program", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 after unlocking, got %d", w.Code)
	}
}

func TestPlotFits(t *testing.T) {
	h, _ := setup(t, nil)
	w := do(t, h, http.MethodGet, "/plot/fits", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if n := w.Body.Len(); n == 0 || n%2880 != 0 {
		t.Errorf("expected a whole number of FITS blocks, got %d bytes", n)
	}
}

func TestProgramRecorded(t *testing.T) {
	root := t.TempDir()
	rec := progrec.New(root, "pwm", true)
	h, _ := setup(t, rec)
	w := do(t, h, http.MethodPost, "/program", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	matches, _ := filepath.Glob(filepath.Join(root, "*", "pwm*.fits"))
	if len(matches) != 1 {
		t.Fatalf("expected one recorded file, got %v", matches)
	}
	fi, err := os.Stat(matches[0])
	if err != nil || fi.Size() == 0 {
		t.Errorf("expected a non-empty recording, got %v", err)
	}
}

func TestIntervalsNamedByTable(t *testing.T) {
	h, _ := setup(t, nil)
	w := do(t, h, http.MethodGet, "/instructions/count", "")
	n := generichttp.IntT{}
	if err := json.NewDecoder(w.Body).Decode(&n); err != nil {
		t.Fatal(err)
	}
	if n.Int != 2 {
		t.Errorf("expected 2 instructions for the default PWM, got %d", n.Int)
	}

	w = do(t, h, http.MethodGet, "/intervals", "")
	iv := map[string][]pulse.Interval{}
	if err := json.NewDecoder(w.Body).Decode(&iv); err != nil {
		t.Fatal(err)
	}
	aom := iv["AOM"]
	if len(aom) != 1 || aom[0].Start != 0 || aom[0].End != 500000 {
		t.Errorf("expected AOM high for the first 1 ms, got %v", aom)
	}
	if len(iv) != 6 {
		t.Errorf("expected 6 outputs, got %d", len(iv))
	}
}
