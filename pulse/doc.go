/*Package pulse compiles timed digital pulse channels into programs for
pulse-blaster style timing controllers.

A controller runs a list of instructions.  Each instruction holds the state
of every output bit (the flags), an opcode, opcode data, and a length.  The
last instruction branches back to the first, so the program repeats forever.

Users do not write instructions by hand.  They describe channels: an output
mask and a list of (start, duration) pulses in nanoseconds.  Compilation is

	channels -> Catalog -> Durations -> instructions -> branch post pass

Catalog XORs the channel mask into a toggle accumulator at every rising and
falling edge and walks the edges in time order.  XOR rather than OR is used
so that a zero length pulse, whose rising and falling edge coincide, leaves
the outputs untouched.

All times are quantized to the controller period, t_min = 1000 / f[MHz] ns,
and are carried internally as integer numbers of periods so that sums of
start and duration are exact.

A minimal example, driving outputs 0 and 1 of a 100 MHz board:

	clk := pulse.Clock{FrequencyMHz: 100}
	a, _ := pulse.NewChannel(1<<0, []float64{0}, []float64{100}, clk)
	b, _ := pulse.NewChannel(1<<1, []float64{50}, []float64{100}, clk)
	prog, _ := pulse.Compile(clk, []pulse.Channel{a, b}, pulse.Options{})
	fmt.Println(prog)
*/
package pulse
