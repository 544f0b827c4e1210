package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/willibrandon/dbprobe/internal/db"
	"github.com/willibrandon/dbprobe/internal/storage/sqlite"
)

// probeLine is the JSON form of a probe, shared by the probe run and history.
type probeLine struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Driver    string    `json:"driver"`
	Target    string    `json:"target"`
	OK        bool      `json:"ok"`
	Value     string    `json:"value,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
	LatencyMS float64   `json:"latency_ms"`
}

func newProbeLine(rec sqlite.ProbeRecord) probeLine {
	return probeLine{
		ID:        rec.ID,
		Time:      rec.StartedAt,
		Driver:    rec.Driver,
		Target:    rec.Target,
		OK:        rec.OK,
		Value:     rec.Value,
		ErrorKind: rec.ErrorKind,
		Error:     rec.Error,
		LatencyMS: rec.LatencyMS,
	}
}

// printer writes one line per probe.
type printer struct {
	w    io.Writer
	json *json.Encoder
	ok   *color.Color
	fail *color.Color
}

func newPrinter(w io.Writer, jsonOutput bool) *printer {
	p := &printer{
		w:    w,
		ok:   color.New(color.FgGreen, color.Bold),
		fail: color.New(color.FgRed, color.Bold),
	}
	if jsonOutput {
		p.json = json.NewEncoder(w)
	}

	// Color only real terminals; NO_COLOR is honored by the color package
	if isTerminal(w) && !color.NoColor {
		p.ok.EnableColor()
		p.fail.EnableColor()
	} else {
		p.ok.DisableColor()
		p.fail.DisableColor()
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *printer) result(res *db.Result) error {
	if p.json != nil {
		return p.json.Encode(newProbeLine(newProbeRecord(res)))
	}

	var err error
	if res.OK() {
		_, err = fmt.Fprintf(p.w, "%s %s\n", p.ok.Sprint("✅ Connection successful:"), res.ValueString())
	} else {
		_, err = fmt.Fprintf(p.w, "%s %v\n", p.fail.Sprint("❌ Connection failed:"), res.Err)
	}
	return err
}
