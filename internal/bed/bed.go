// Package bed renders gene regions as BED lines in genomic order.
package bed

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/panelhub/paneltrack/internal/models"
)

// Placeholder values emitted when the coordinate service had no data
// for a gene or returned something unparseable. They sort after every
// real region.
const (
	NoRecord = "NoRecord"
	ErrValue = "Error"
)

// Row is one BED line. Start and End are strings because placeholder
// rows carry NoRecord or Error in place of coordinates.
type Row struct {
	Chrom  string
	Start  string
	End    string
	Name   string
	Strand string
	// Extra holds trailing columns beyond the standard five, in order.
	Extra []string
}

// coordinate rank used for chromosomes and positions that cannot be
// ordered numerically.
const unranked = int64(1) << 62

func chromRank(chrom string) int64 {
	if chrom == NoRecord || chrom == ErrValue {
		return unranked
	}
	s := strings.TrimPrefix(chrom, "chr")
	switch {
	case s == "X":
		return 23
	case s == "Y":
		return 24
	default:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			return unranked
		}
		return n
	}
}

func posRank(pos string) int64 {
	n, err := strconv.ParseInt(pos, 10, 64)
	if err != nil {
		return unranked
	}
	return n
}

// Sort orders rows genomically: autosomes 1 through 22, then X, then Y,
// ascending by start and end within a chromosome. Placeholder rows go
// last. The sort is stable so equal keys keep their input order.
func Sort(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		ci, cj := chromRank(rows[i].Chrom), chromRank(rows[j].Chrom)
		if ci != cj {
			return ci < cj
		}
		si, sj := posRank(rows[i].Start), posRank(rows[j].Start)
		if si != sj {
			return si < sj
		}
		return posRank(rows[i].End) < posRank(rows[j].End)
	})
}

// Write renders rows as tab separated BED lines with no header.
func Write(w io.Writer, rows []Row) error {
	bw := bufio.NewWriter(w)
	for _, r := range rows {
		cols := append([]string{r.Chrom, r.Start, r.End, r.Name, r.Strand}, r.Extra...)
		if _, err := bw.WriteString(strings.Join(cols, "\t")); err != nil {
			return fmt.Errorf("write bed row: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("write bed row: %w", err)
		}
	}
	return bw.Flush()
}

// FromRegions converts locally stored regions into rows with the
// extended local column set: transcript, region type and HGNC ID after
// the standard five.
func FromRegions(regions []models.BedRegion) []Row {
	rows := make([]Row, 0, len(regions))
	for _, reg := range regions {
		rows = append(rows, Row{
			Chrom:  reg.Chromosome,
			Start:  strconv.FormatInt(reg.Start, 10),
			End:    strconv.FormatInt(reg.End, 10),
			Name:   reg.Name,
			Strand: reg.Strand,
			Extra:  []string{reg.Transcript, reg.Type, reg.HGNCID},
		})
	}
	return rows
}

// NoRecordRow builds the placeholder line for a gene the coordinate
// service knows nothing about.
func NoRecordRow(symbol string) Row {
	return Row{
		Chrom:  NoRecord,
		Start:  NoRecord,
		End:    NoRecord,
		Name:   symbol + "_" + NoRecord,
		Strand: NoRecord,
	}
}

// ErrorRow builds the placeholder line for a gene whose response could
// not be parsed.
func ErrorRow(symbol string) Row {
	return Row{
		Chrom:  ErrValue,
		Start:  ErrValue,
		End:    ErrValue,
		Name:   symbol + "_" + ErrValue,
		Strand: ErrValue,
	}
}
