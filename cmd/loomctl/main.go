// loomctl is a small command line client for the charloom API. It covers
// the day-to-day calls: listing models, checking usage stats, and running
// one-off generations without reaching for curl.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"github.com/charloom/charloom/pkg/ngram"
)

// Response mirrors for the server's generate endpoints. loomctl only
// decodes the fields it prints.
type generateResponse struct {
	ID          string  `json:"id"`
	Model       string  `json:"model"`
	Seed        string  `json:"seed"`
	Temperature float64 `json:"temperature"`
	Output      string  `json:"output"`
	Error       string  `json:"error,omitempty"`
}

type sheetRow struct {
	Temperature float64 `json:"temperature"`
	Output      string  `json:"output"`
}

type sheetResponse struct {
	Model string     `json:"model"`
	Seed  string     `json:"seed"`
	Rows  []sheetRow `json:"rows"`
}

type statsSummary struct {
	TotalRuns          int64  `json:"total_runs"`
	TotalChars         int64  `json:"total_chars"`
	UniqueModels       int64  `json:"unique_models"`
	UniqueTemperatures int64  `json:"unique_temperatures"`
	Uptime             string `json:"uptime"`
	DatabaseSize       string `json:"database_size"`
}

type client struct {
	addr string
	key  string
	hc   *http.Client
}

func (c *client) do(method, path string, body any, out any) error {
	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequest(method, c.addr+path, &reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("loom-auth", c.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("request failed (HTTP %d)", resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *client) get(path string, out any) error {
	return c.do(http.MethodGet, path, nil, out)
}

func (c *client) post(path string, body any, out any) error {
	return c.do(http.MethodPost, path, body, out)
}

func newTable() *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func header(text string) string {
	return color.New(color.FgCyan, color.OpBold).Render(text)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, color.New(color.FgRed).Render("error:"), err)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: loomctl [flags] <command> [command flags]

commands:
  models    list models and their stored sizes
  stats     show generation usage counters
  generate  generate a single sample
  sheet     generate one sample per temperature

flags:
  -addr string   server address (default "http://localhost:7310")
  -key string    api key (default $LOOM_API_KEY)
`)
	os.Exit(2)
}

func main() {
	addr := flag.String("addr", "http://localhost:7310", "server address")
	key := flag.String("key", os.Getenv("LOOM_API_KEY"), "api key")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}

	c := &client{addr: strings.TrimSuffix(*addr, "/"), key: *key, hc: http.DefaultClient}
	args := flag.Args()[1:]

	var err error
	switch flag.Arg(0) {
	case "models":
		err = cmdModels(c)
	case "stats":
		err = cmdStats(c)
	case "generate":
		err = cmdGenerate(c, args)
	case "sheet":
		err = cmdSheet(c, args)
	default:
		usage()
	}
	if err != nil {
		fatal(err)
	}
}

func cmdModels(c *client) error {
	var models []ngram.ModelInfo
	if err := c.get("/api/models", &models); err != nil {
		return err
	}
	if len(models) == 0 {
		fmt.Println("no models")
		return nil
	}

	table := newTable()
	table.SetHeader([]string{"Name", "Window", "Vocab", "Contexts", "Transitions", "Frequency"})
	for _, m := range models {
		var stats ngram.ModelStats
		if err := c.get("/api/models/"+url.PathEscape(m.Name)+"/stats", &stats); err != nil {
			return fmt.Errorf("stats for %q: %w", m.Name, err)
		}
		table.Append([]string{
			m.Name,
			strconv.Itoa(m.WindowLen),
			humanize.Comma(int64(stats.VocabSize)),
			humanize.Comma(int64(stats.Contexts)),
			humanize.Comma(int64(stats.Transitions)),
			humanize.Comma(int64(stats.TotalFrequency)),
		})
	}
	table.Render()
	return nil
}

func cmdStats(c *client) error {
	var summary statsSummary
	if err := c.get("/api/stats/summary", &summary); err != nil {
		return err
	}

	fmt.Println(header("Summary"))
	table := newTable()
	table.Append([]string{"Runs", humanize.Comma(summary.TotalRuns)})
	table.Append([]string{"Characters", humanize.Comma(summary.TotalChars)})
	table.Append([]string{"Models used", humanize.Comma(summary.UniqueModels)})
	table.Append([]string{"Temperatures used", humanize.Comma(summary.UniqueTemperatures)})
	table.Append([]string{"Uptime", summary.Uptime})
	table.Append([]string{"Database size", summary.DatabaseSize})
	table.Render()

	var top []map[string]any
	if err := c.get("/api/stats/top_models", &top); err != nil {
		return err
	}
	if len(top) == 0 {
		return nil
	}

	fmt.Println()
	fmt.Println(header("Top models"))
	topTable := newTable()
	topTable.SetHeader([]string{"Model", "Runs", "Chars", "Last used"})
	for _, row := range top {
		// JSON numbers decode as float64 in a map.
		runs, _ := row["total_runs"].(float64)
		chars, _ := row["total_chars"].(float64)
		name, _ := row["model_name"].(string)
		lastUsed, _ := row["last_used"].(string)
		topTable.Append([]string{
			name,
			humanize.Comma(int64(runs)),
			humanize.Comma(int64(chars)),
			lastUsed,
		})
	}
	topTable.Render()
	return nil
}

func cmdGenerate(c *client, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	model := fs.String("model", "", "model name (empty uses the server default)")
	seed := fs.String("seed", "", "seed text (empty picks a random stored context)")
	length := fs.Int("length", 0, "characters to generate (0 uses the server default)")
	temp := fs.Float64("temp", 0, "sampling temperature (0 uses the server default)")
	_ = fs.Parse(args)

	req := map[string]any{"model": *model, "seed": *seed, "length": *length, "temperature": *temp}
	var resp generateResponse
	if err := c.post("/api/generate", req, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		fmt.Fprintln(os.Stderr, color.New(color.FgYellow).Render("partial:"), resp.Error)
	}
	fmt.Println(resp.Output)
	return nil
}

func cmdSheet(c *client, args []string) error {
	fs := flag.NewFlagSet("sheet", flag.ExitOnError)
	model := fs.String("model", "", "model name (empty uses the server default)")
	seed := fs.String("seed", "", "seed text (empty picks a random stored context)")
	length := fs.Int("length", 0, "characters per sample (0 uses the server default)")
	temps := fs.String("temps", "", "comma separated temperatures (empty uses the server defaults)")
	_ = fs.Parse(args)

	req := map[string]any{"model": *model, "seed": *seed, "length": *length}
	if *temps != "" {
		var parsed []float64
		for _, part := range strings.Split(*temps, ",") {
			t, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return fmt.Errorf("bad temperature %q: %w", part, err)
			}
			parsed = append(parsed, t)
		}
		req["temperatures"] = parsed
	}

	var resp sheetResponse
	if err := c.post("/api/generate/sheet", req, &resp); err != nil {
		return err
	}

	fmt.Printf("%s seeded with %q\n\n", resp.Model, resp.Seed)
	for _, row := range resp.Rows {
		fmt.Println(header(fmt.Sprintf("T = %.2f", row.Temperature)))
		fmt.Println(row.Output)
		fmt.Println()
	}
	return nil
}
