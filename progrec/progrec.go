// Package progrec records the programs written to hardware to disk, one FITS
// file per write, so an experiment's timing can be reconstructed later.
package progrec

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nasa-jpl/pulselab/generichttp"
	"github.com/nasa-jpl/pulselab/server"
)

// Recorder writes files with incrementing names in yyyy-mm-dd subfolders of
// Root.  It is safe for concurrent use.
type Recorder struct {
	mu sync.Mutex

	// root is the root path
	root string

	// prefix is the prefix for the filenames
	prefix string

	// enabled turns recording on and off
	enabled bool

	// last is the path of the most recent recording
	last string
}

// New returns a new Recorder
func New(root, prefix string, enabled bool) *Recorder {
	return &Recorder{root: root, prefix: prefix, enabled: enabled}
}

// dayFolder returns the folder for today, creating it if needed
func (r *Recorder) dayFolder() (string, error) {
	y, m, d := time.Now().Date()
	fldr := filepath.Join(r.root, fmt.Sprintf("%04d-%02d-%02d", y, m, d))
	err := os.MkdirAll(fldr, 0777)
	return fldr, err
}

// next scans a folder for files with our prefix and returns one more than
// the highest counter found
func (r *Recorder) next(fldr string) (int, error) {
	files, err := os.ReadDir(fldr)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, file := range files {
		fn := file.Name()
		if file.IsDir() || !strings.HasSuffix(fn, ".fits") || !strings.HasPrefix(fn, r.prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(fn, r.prefix), ".fits"))
		if err != nil {
			continue
		}
		if count < n {
			count = n
		}
	}
	return count + 1, nil
}

// Record creates the next file and calls write with it.  If the recorder is
// disabled or has no root, Record does nothing and returns "".  The path of
// the file is returned.
func (r *Recorder) Record(write func(io.Writer) error) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled || r.root == "" {
		return "", nil
	}
	fldr, err := r.dayFolder()
	if err != nil {
		return "", err
	}
	n, err := r.next(fldr)
	if err != nil {
		return "", err
	}
	fn := filepath.Join(fldr, fmt.Sprintf("%s%06d.fits", r.prefix, n))
	fid, err := os.Create(fn)
	if err != nil {
		return "", err
	}
	defer fid.Close()
	if err = write(fid); err != nil {
		return fn, err
	}
	r.last = fn
	return fn, nil
}

// Last returns the path of the most recent recording, "" if none were made
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// ServeLast replies with the most recent recording
func (r *Recorder) ServeLast(w http.ResponseWriter, req *http.Request) {
	last := r.Last()
	if last == "" {
		http.Error(w, "nothing recorded yet", http.StatusNotFound)
		return
	}
	server.ReplyWithFile(w, req, filepath.Base(last), filepath.Dir(last))
}

// Root returns the root folder
func (r *Recorder) Root() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root
}

// SetRoot changes the root folder, creating it
func (r *Recorder) SetRoot(root string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.MkdirAll(root, 0777); err != nil {
		return err
	}
	r.root = root
	return nil
}

// Prefix returns the filename prefix
func (r *Recorder) Prefix() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prefix
}

// SetPrefix changes the filename prefix
func (r *Recorder) SetPrefix(prefix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefix = prefix
	return nil
}

// Enabled returns true if recording is on
func (r *Recorder) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// SetEnabled turns recording on or off
func (r *Recorder) SetEnabled(b bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = b
	return nil
}

// Inject adds GET and POST routes for /autowrite/root, /autowrite/prefix and
// /autowrite/enabled to the HTTPer which manipulate the recorder, and
// GET /autowrite/last which downloads the latest file
func Inject(other generichttp.HTTPer, r *Recorder) {
	rt := other.RT()
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/autowrite/root"}] = generichttp.SetString(r.SetRoot)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/root"}] = generichttp.GetString(func() (string, error) { return r.Root(), nil })
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/autowrite/prefix"}] = generichttp.SetString(r.SetPrefix)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/prefix"}] = generichttp.GetString(func() (string, error) { return r.Prefix(), nil })
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/autowrite/enabled"}] = generichttp.SetBool(r.SetEnabled)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/enabled"}] = generichttp.GetBool(func() (bool, error) { return r.Enabled(), nil })
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/last"}] = r.ServeLast
}
