package cli

import (
	"fmt"
	"io"
	"math"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/xhhuango/json"

	"github.com/bcdannyboy/optpricer/models"
)

// Decimal places used when printing results.
const (
	pricePlaces = 4
	greekPlaces = 6
	volPlaces   = 6
)

// Output handles formatted output for the CLI.
type Output struct {
	writer   io.Writer
	jsonMode bool
}

// NewOutput creates a new Output instance.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		writer:   cmd.OutOrStdout(),
		jsonMode: jsonMode,
	}
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as indented JSON.
func (o *Output) JSON(data interface{}) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(o.writer, string(b))
	return err
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Table renders rows under headers.
func (o *Output) Table(headers []string, rows [][]string) {
	table := tablewriter.NewWriter(o.writer)
	table.SetHeader(headers)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.AppendBulk(rows)
	table.Render()
}

// KeyValues renders a two column table.
func (o *Output) KeyValues(rows [][]string) {
	table := tablewriter.NewWriter(o.writer)
	table.SetColumnSeparator("")
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(rows)
	table.Render()
}

// fixed formats x with a fixed number of decimals. Non-finite values print
// as-is.
func fixed(x float64, places int32) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return fmt.Sprint(x)
	}
	return decimal.NewFromFloat(x).StringFixed(places)
}

// optionalFixed renders a missing value as an empty cell.
func optionalFixed(x *float64, places int32) string {
	if x == nil {
		return ""
	}
	return fixed(*x, places)
}

// round rounds x half away from zero for JSON output. Non-finite values are
// returned unchanged.
func round(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}

// resultView is the printed form of a PricingResult.
type resultView struct {
	Contract      string             `json:"contract"`
	Method        string             `json:"method"`
	Price         float64            `json:"price"`
	StandardError *float64           `json:"standard_error,omitempty"`
	Paths         int                `json:"paths,omitempty"`
	Greeks        map[string]float64 `json:"greeks,omitempty"`
	ElapsedMS     int64              `json:"elapsed_ms"`
	RunID         string             `json:"run_id,omitempty"`
}

func newResultView(c models.ContractSpec, res models.PricingResult, elapsedMS int64) resultView {
	v := resultView{
		Contract:  c.String(),
		Method:    res.Method,
		Price:     round(res.Price, pricePlaces),
		Paths:     res.Paths,
		ElapsedMS: elapsedMS,
	}
	if res.HasStandardError() {
		se := round(res.StandardError, pricePlaces)
		v.StandardError = &se
	}
	if len(res.Greeks) > 0 {
		v.Greeks = greekView(res.Greeks)
	}
	return v
}

func greekView(g models.Greeks) map[string]float64 {
	out := make(map[string]float64, len(g))
	for k, val := range g {
		out[string(k)] = round(val, greekPlaces)
	}
	return out
}

// printResult writes a pricing result as JSON or a key/value table.
func printResult(o *Output, v resultView) error {
	if o.IsJSON() {
		return o.JSON(v)
	}

	rows := [][]string{
		{"Contract", v.Contract},
		{"Method", v.Method},
		{"Price", fixed(v.Price, pricePlaces)},
	}
	if v.StandardError != nil {
		rows = append(rows,
			[]string{"Std error", fixed(*v.StandardError, pricePlaces)},
			[]string{"Paths", fmt.Sprint(v.Paths)},
		)
	}
	for _, g := range models.AllGreeks() {
		if val, ok := v.Greeks[string(g)]; ok {
			rows = append(rows, []string{titleGreek(g), fixed(val, greekPlaces)})
		}
	}
	rows = append(rows, []string{"Elapsed", fmt.Sprintf("%dms", v.ElapsedMS)})
	o.KeyValues(rows)
	return nil
}

func titleGreek(g models.Greek) string {
	s := string(g)
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
