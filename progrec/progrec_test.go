package progrec_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/nasa-jpl/pulselab/progrec"
)

func write(w io.Writer) error {
	_, err := w.Write([]byte("SIMPLE"))
	return err
}

func TestRecordIncrements(t *testing.T) {
	root := t.TempDir()
	rec := progrec.New(root, "t1_", true)
	a, err := rec.Record(write)
	if err != nil {
		t.Fatal(err)
	}
	b, err := rec.Record(write)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(a) != "t1_000001.fits" || filepath.Base(b) != "t1_000002.fits" {
		t.Errorf("expected t1_000001.fits then t1_000002.fits, got %s and %s", a, b)
	}
	if filepath.Dir(filepath.Dir(a)) != root {
		t.Errorf("expected a dated subfolder of %s, got %s", root, a)
	}
}

func TestRecordDisabled(t *testing.T) {
	rec := progrec.New(t.TempDir(), "", false)
	fn, err := rec.Record(write)
	if err != nil || fn != "" {
		t.Errorf("expected nothing recorded, got %q %v", fn, err)
	}
}

func TestServeLast(t *testing.T) {
	rec := progrec.New(t.TempDir(), "x_", true)
	w := httptest.NewRecorder()
	rec.ServeLast(w, httptest.NewRequest(http.MethodGet, "/autowrite/last", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 before recording, got %d", w.Code)
	}

	if _, err := rec.Record(write); err != nil {
		t.Fatal(err)
	}
	w = httptest.NewRecorder()
	rec.ServeLast(w, httptest.NewRequest(http.MethodGet, "/autowrite/last", nil))
	if w.Code != http.StatusOK || w.Body.String() != "SIMPLE" {
		t.Errorf("expected the recording back, got %d %q", w.Code, w.Body.String())
	}
}
