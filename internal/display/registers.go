package display

import (
	"bytes"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/harrison/thingamajig/internal/models"
)

// RegisterTable writes the register file as an aligned table.
func RegisterTable(out io.Writer, r models.RegisterSnapshot) {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "REG\tHEX\tDEC\n")
	fmt.Fprintf(tw, "ip\t%04x\t%d\n", r.IP, r.IP)
	fmt.Fprintf(tw, "rp\t%04x\t%d\n", r.RP, r.RP)
	for i, v := range r.R {
		fmt.Fprintf(tw, "r%d\t%02x\t%d\n", i, v, v)
	}
	tw.Flush()

	// escape codes would count toward tabwriter cell widths, so the header
	// is colored only once aligned
	header, rows, _ := bytes.Cut(buf.Bytes(), []byte("\n"))
	fmt.Fprintln(out, color.New(color.FgCyan).Sprint(string(header)))
	out.Write(rows)
}
