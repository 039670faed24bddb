package textgrid

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Write encodes g in the long text layout.
func (g *TextGrid) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "File type = \"ooTextFile\"\nObject class = \"TextGrid\"\n\n")
	fmt.Fprintf(bw, "xmin = %s\nxmax = %s\n", ftoa(g.XMin), ftoa(g.XMax))
	if len(g.Tiers) == 0 {
		fmt.Fprintf(bw, "tiers? <absent>\n")
		return bw.Flush()
	}
	fmt.Fprintf(bw, "tiers? <exists>\nsize = %d\nitem []:\n", len(g.Tiers))
	for i, t := range g.Tiers {
		fmt.Fprintf(bw, "    item [%d]:\n", i+1)
		fmt.Fprintf(bw, "        class = %s\n        name = %s\n", quote(t.Class), quote(t.Name))
		fmt.Fprintf(bw, "        xmin = %s\n        xmax = %s\n", ftoa(t.XMin), ftoa(t.XMax))
		switch t.Class {
		case IntervalTier:
			fmt.Fprintf(bw, "        intervals: size = %d\n", len(t.Intervals))
			for j, iv := range t.Intervals {
				fmt.Fprintf(bw, "        intervals [%d]:\n", j+1)
				fmt.Fprintf(bw, "            xmin = %s\n            xmax = %s\n            text = %s\n",
					ftoa(iv.XMin), ftoa(iv.XMax), quote(iv.Text))
			}
		case TextTier:
			fmt.Fprintf(bw, "        points: size = %d\n", len(t.Points))
			for j, pt := range t.Points {
				fmt.Fprintf(bw, "        points [%d]:\n", j+1)
				fmt.Fprintf(bw, "            number = %s\n            mark = %s\n", ftoa(pt.Time), quote(pt.Mark))
			}
		default:
			return fmt.Errorf("textgrid: unknown tier class %q", t.Class)
		}
	}
	return bw.Flush()
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
