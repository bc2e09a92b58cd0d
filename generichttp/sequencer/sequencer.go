// Package sequencer exposes a pulse program session over HTTP.
//
// Settings are read and changed as JSON objects mapping names to numbers, or
// one at a time as {"f64": value} at /settings/{name}.  Nothing is sent to
// the board until POST /program.
package sequencer

import (
	"encoding/json"
	"errors"
	"fmt"
	"go/types"
	"io"
	"log"
	"net/http"

	"github.com/astrogo/fitsio"
	"github.com/go-chi/chi"

	"github.com/nasa-jpl/pulselab/generichttp"
	"github.com/nasa-jpl/pulselab/progrec"
	"github.com/nasa-jpl/pulselab/pulse"
	"github.com/nasa-jpl/pulselab/pulsegen"
)

// status maps an error to an HTTP status.  Bad settings are the client's
// fault, anything else is ours or the board's.
func status(err error) int {
	switch {
	case errors.Is(err, pulsegen.ErrUnknownSetting),
		errors.Is(err, pulsegen.ErrOutOfRange),
		errors.Is(err, pulse.ErrBadTime),
		errors.Is(err, pulse.ErrLengthMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetParams returns the params of the session's generator as JSON
func GetParams(s *pulsegen.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		generichttp.EncodeJSON(w, s.Params())
	}
}

// GetSettings returns every setting as a JSON object
func GetSettings(s *pulsegen.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		generichttp.EncodeJSON(w, s.Settings())
	}
}

// SetSettings changes the settings in a JSON object.  If any is invalid,
// none are changed.
func SetSettings(s *pulsegen.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := pulsegen.Settings{}
		err := json.NewDecoder(r.Body).Decode(&st)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = s.Update(st)
		if err != nil {
			http.Error(w, err.Error(), status(err))
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetSetting returns the setting named in the URL as {"f64": value}
func GetSetting(s *pulsegen.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := s.Get(chi.URLParam(r, "name"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		hp := generichttp.HumanPayload{T: types.Float64, Float: v}
		hp.EncodeAndRespond(w, r)
	}
}

// SetSetting changes the setting named in the URL from {"f64": value}
func SetSetting(s *pulsegen.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		generichttp.SetFloat(func(f float64) error {
			return s.Set(name, f)
		})(w, r)
	}
}

// build compiles the current settings, replying with an error if that fails
func build(w http.ResponseWriter, s *pulsegen.Session) (pulsegen.Result, bool) {
	res, err := s.Program()
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return res, false
	}
	return res, true
}

// GetInstructions returns the compiled instructions as a JSON array
func GetInstructions(s *pulsegen.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := build(w, s)
		if !ok {
			return
		}
		generichttp.EncodeJSON(w, res.Program.Instructions)
	}
}

// GetInstructionTable returns the compiled instructions as a plain text table
func GetInstructionTable(s *pulsegen.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := build(w, s)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, res.Program.String())
	}
}

// GetInstructionCount returns the number of instructions in the program
func GetInstructionCount(s *pulsegen.Session) http.HandlerFunc {
	return generichttp.GetInt(func() (int, error) {
		res, err := s.Program()
		return len(res.Program.Instructions), err
	})
}

// GetIntervals returns the high periods of every output as JSON,
// {name: [{start, end}]} in clock periods.  Outputs missing from the
// channel table are named chan_N.
func GetIntervals(s *pulsegen.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := build(w, s)
		if !ok {
			return
		}
		names := s.Config().Table.Names()
		out := map[string][]pulse.Interval{}
		for bit, iv := range pulse.Intervals(res.Program) {
			name, ok := names[bit]
			if !ok {
				name = fmt.Sprintf("chan_%d", bit)
			}
			out[name] = iv
		}
		generichttp.EncodeJSON(w, out)
	}
}

// GetDerived returns the values the generator derived from the settings
func GetDerived(s *pulsegen.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := build(w, s)
		if !ok {
			return
		}
		generichttp.EncodeJSON(w, res.Derived)
	}
}

// GetDuration returns the length of one repetition of the program in ns
func GetDuration(s *pulsegen.Session) http.HandlerFunc {
	return generichttp.GetFloat(func() (float64, error) {
		res, err := s.Program()
		return res.Program.Duration(), err
	})
}

// GetChecksum returns the checksum of the program for the current settings
func GetChecksum(s *pulsegen.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := build(w, s)
		if !ok {
			return
		}
		hp := generichttp.HumanPayload{T: types.Uint16, Uint16: res.Program.Checksum()}
		hp.EncodeAndRespond(w, r)
	}
}

// GetLoaded returns the checksum of the last program written to the board
func GetLoaded(s *pulsegen.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hp := generichttp.HumanPayload{T: types.Uint16, Uint16: s.Loaded()}
		hp.EncodeAndRespond(w, r)
	}
}

// GetPlot returns a step trace per output as JSON, {name: {x: [], y: []}}
func GetPlot(s *pulsegen.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lines, err := s.PlotLines()
		if err != nil {
			http.Error(w, err.Error(), status(err))
			return
		}
		generichttp.EncodeJSON(w, lines)
	}
}

// headerCards describes a program in FITS header cards
func headerCards(s *pulsegen.Session, p pulse.Program) []fitsio.Card {
	return []fitsio.Card{
		{Name: "GENERATR", Value: s.Name(), Comment: "pulse sequence generator"},
		{Name: "CLOCK", Value: p.Clock.FrequencyMHz, Unit: "MHz"},
		{Name: "DURATION", Value: p.Duration(), Unit: "ns", Comment: "length of one repetition"},
		{Name: "NINST", Value: len(p.Instructions), Comment: "number of instructions"},
		{Name: "CRC16", Value: int(p.Checksum()), Comment: "CRC-16/XMODEM of the instructions"},
	}
}

func writeFits(w io.Writer, s *pulsegen.Session, p pulse.Program) error {
	cfg := s.Config()
	lines := pulse.PlotLines(p, cfg.Table.Names(), cfg.ShortPulseBit)
	return pulse.WriteFits(w, lines, headerCards(s, p))
}

// GetPlotFits returns the plot traces as a FITS file with one binary table
// per output
func GetPlotFits(s *pulsegen.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := build(w, s)
		if !ok {
			return
		}
		hdr := w.Header()
		hdr.Set("Content-Type", "image/fits")
		hdr.Set("Content-Disposition", "attachment; filename=pulses.fits")
		err := writeFits(w, s, res.Program)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// WriteProgram compiles the current settings, loads the board and starts it.
// The checksum of the program is returned as {"uint16": value}.  If rec is
// not nil the program is recorded.
func WriteProgram(s *pulsegen.Session, rec *progrec.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.Write()
		if err != nil {
			http.Error(w, err.Error(), status(err))
			return
		}
		if rec != nil {
			fn, err := rec.Record(func(w io.Writer) error {
				return writeFits(w, s, res.Program)
			})
			if err != nil {
				log.Println("recording program failed:", err)
			} else if fn != "" {
				log.Println("program recorded to", fn)
			}
		}
		hp := generichttp.HumanPayload{T: types.Uint16, Uint16: res.Program.Checksum()}
		hp.EncodeAndRespond(w, r)
	}
}

// Stop halts the board
func Stop(s *pulsegen.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.Stop()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// HTTPSequencer wraps a session in an HTTP route table
type HTTPSequencer struct {
	// Session is the underlying session
	Session *pulsegen.Session

	// RouteTable maps URLs to functions
	RouteTable generichttp.RouteTable
}

// NewHTTPSequencer returns a new HTTP wrapper around a session.  rec may be
// nil, otherwise every program written is recorded and the recorder can be
// manipulated under /autowrite.
func NewHTTPSequencer(s *pulsegen.Session, rec *progrec.Recorder) HTTPSequencer {
	h := HTTPSequencer{Session: s}
	rt := generichttp.RouteTable{
		generichttp.MethodPath{Method: http.MethodGet, Path: "/params"}:             GetParams(s),
		generichttp.MethodPath{Method: http.MethodGet, Path: "/settings"}:           GetSettings(s),
		generichttp.MethodPath{Method: http.MethodPost, Path: "/settings"}:          SetSettings(s),
		generichttp.MethodPath{Method: http.MethodGet, Path: "/settings/{name}"}:    GetSetting(s),
		generichttp.MethodPath{Method: http.MethodPost, Path: "/settings/{name}"}:   SetSetting(s),
		generichttp.MethodPath{Method: http.MethodGet, Path: "/derived"}:            GetDerived(s),
		generichttp.MethodPath{Method: http.MethodGet, Path: "/instructions"}:       GetInstructions(s),
		generichttp.MethodPath{Method: http.MethodGet, Path: "/instructions/table"}: GetInstructionTable(s),
		generichttp.MethodPath{Method: http.MethodGet, Path: "/instructions/count"}: GetInstructionCount(s),
		generichttp.MethodPath{Method: http.MethodGet, Path: "/intervals"}:          GetIntervals(s),
		generichttp.MethodPath{Method: http.MethodGet, Path: "/duration"}:           GetDuration(s),
		generichttp.MethodPath{Method: http.MethodGet, Path: "/checksum"}:           GetChecksum(s),
		generichttp.MethodPath{Method: http.MethodGet, Path: "/loaded"}:             GetLoaded(s),
		generichttp.MethodPath{Method: http.MethodGet, Path: "/plot"}:               GetPlot(s),
		generichttp.MethodPath{Method: http.MethodGet, Path: "/plot/fits"}:          GetPlotFits(s),
		generichttp.MethodPath{Method: http.MethodPost, Path: "/program"}:           WriteProgram(s, rec),
		generichttp.MethodPath{Method: http.MethodPost, Path: "/stop"}:              Stop(s),
	}
	h.RouteTable = rt
	if rec != nil {
		progrec.Inject(h, rec)
	}
	return h
}

// RT satisfies the generichttp.HTTPer interface
func (h HTTPSequencer) RT() generichttp.RouteTable {
	return h.RouteTable
}
