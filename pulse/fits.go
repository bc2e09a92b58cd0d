package pulse

import (
	"io"
	"sort"

	"github.com/astrogo/fitsio"
)

// WriteFits streams plot lines to w as a FITS file.  The primary HDU is empty
// and carries metadata; each channel is a binary table extension named after
// the channel with a TIME (ns) and LEVEL column.  Channels are written in
// alphabetical order.
func WriteFits(w io.Writer, lines map[string]Trace, metadata []fitsio.Card) error {
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()

	phdu := fitsio.NewImage(8, nil)
	defer phdu.Close()
	err = phdu.Header().Append(metadata...)
	if err != nil {
		return err
	}
	err = fits.Write(phdu)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(lines))
	for k := range lines {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		err = writeTrace(fits, name, lines[name])
		if err != nil {
			return err
		}
	}
	return nil
}

func writeTrace(fits *fitsio.File, name string, tr Trace) error {
	cols := []fitsio.Column{
		{Name: "TIME", Format: "D", Unit: "ns"},
		{Name: "LEVEL", Format: "J"},
	}
	tbl, err := fitsio.NewTable(name, cols, fitsio.BINARY_TBL)
	if err != nil {
		return err
	}
	defer tbl.Close()
	for i := range tr.X {
		x := tr.X[i]
		y := int32(tr.Y[i])
		err = tbl.Write(&x, &y)
		if err != nil {
			return err
		}
	}
	return fits.Write(tbl)
}
