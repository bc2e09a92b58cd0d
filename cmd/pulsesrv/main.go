package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/theckman/yacspin"

	"github.com/nasa-jpl/pulselab/generichttp"
	"github.com/nasa-jpl/pulselab/spincore"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "pulsesrv.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func loadconfig() Config {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	return c
}

func root() {
	str := `pulsesrv compiles pulse sequences for SpinCore PulseBlaster boards and
exposes them over HTTP.  Sequences are configured by a handful of settings;
the server turns them into a looping program and loads it onto the board.

Usage:
	pulsesrv <command>

Commands:
	run
	help
	mkconf
	conf
	version
	print <endpoint>`
	fmt.Println(str)
}

func help() {
	str := `pulsesrv is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

Without a configuration file, the server serves a PWM sequence at /pwm using a
mock board.  Set Mock: false and Bridge.Addr to talk to a PulseBlaster bridge.

No two sequences can have the same endpoint.

Channels maps the channel names used by the sequences to output bits of the
board.  ShortPulseBit is the lowest bit of the short pulse field (21 on a
24-bit PulseBlaster ESR-PRO); set it to 0 on boards without one.

Sequence types and their channels, case insensitive:
- "pwm"  square wave on outputs 0..N-1
- "t1"   AOM, uW, DAQ_sig, DAQ_ref
- "t2"   Hahn echo; AOM, uW, I, Q, DAQ_sig, DAQ_ref
- "rabi" AOM, uW, DAQ_sig, DAQ_ref, and the short pulse field
- "xy8"  AOM, uW, I, Q, DAQ_sig, DAQ_ref
- "correlation_spectroscopy" or "cs"  two XY8s tau0 apart; AOM, uW, I, Q, DAQ_sig, DAQ_ref
- "sig_ref_readout" or "sigref"  uW tick train at 4x, 2x, 1x f_tick; uW, DAQ_sig, DAQ_ref

Every sequence also accepts sync_out (MHz), all_off_padding (ns) and
short_pulse (0 or 1).  GET <endpoint>/params lists the settings of a sequence.`
	fmt.Println(str)
}

func mkconf() {
	c := loadconfig()
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := loadconfig()
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("pulsesrv version %v\n", Version)
}

// printprogram compiles the sequence at an endpoint and prints it, without
// touching the board
func printprogram(endpoint string) {
	c := loadconfig()
	want := generichttp.SubMuxSanitize(endpoint)
	for _, s := range c.Sequences {
		if generichttp.SubMuxSanitize(s.Endpoint) != want {
			continue
		}
		sess, err := NewSession(c, s, spincore.NewMock(c.genConfig().Clock))
		if err != nil {
			log.Fatal(err)
		}
		res, err := sess.Program()
		if err != nil {
			log.Fatal(err)
		}
		fmt.Print(res.Program)
		fmt.Printf("duration %g ns, checksum %04X\n", res.Program.Duration(), res.Program.Checksum())
		for _, name := range res.Derived.Names() {
			fmt.Printf("%s = %g\n", name, res.Derived[name])
		}
		return
	}
	log.Fatalf("no sequence at endpoint %s", want)
}

// connecting shows a spinner on the terminal until done is called
func connecting(addr string) (done func(error)) {
	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " ",
		Message:           "connecting to PulseBlaster bridge at " + addr,
		StopCharacter:     "ok",
		StopFailCharacter: "failed",
	})
	if err != nil || spinner.Start() != nil {
		return func(error) {}
	}
	return func(err error) {
		if err != nil {
			spinner.StopFail()
			return
		}
		spinner.Stop()
	}
}

func run() {
	c := loadconfig()
	done := func(error) {}
	if !c.Mock {
		done = connecting(c.Bridge.Addr)
	}
	board, err := OpenBoard(c)
	done(err)
	if err != nil {
		log.Fatal(err)
	}
	mux, err := BuildMux(c, board)
	if err != nil {
		log.Fatal(err)
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		if err := board.Stop(); err != nil {
			log.Println("error stopping board:", err)
		}
		board.Close()
		os.Exit(0)
	}()
	log.Println("now listening for requests at ", c.Addr)
	log.Fatal(http.ListenAndServe(c.Addr, mux))
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	case "print":
		if len(args) < 3 {
			log.Fatal("print requires an endpoint")
		}
		printprogram(args[2])
		return
	default:
		log.Fatal("unknown command")
	}
}
