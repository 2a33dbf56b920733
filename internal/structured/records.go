package structured

import (
	"bufio"
	"encoding/binary"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/content-extractor/constants"
)

func delimitedMetadata(txt string, comma rune) map[string]any {
	r := csv.NewReader(strings.NewReader(txt))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var (
		rows    int
		headers []string
		ragged  bool
		width   int
	)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return map[string]any{
				"valid":        false,
				"parse_error":  err.Error(),
				"row_count":    rows,
				"headers":      headers,
				"column_count": len(headers),
			}
		}
		if rows == 0 {
			headers = rec
			width = len(rec)
		} else if len(rec) != width {
			ragged = true
		}
		rows++
	}
	if headers == nil {
		headers = []string{}
	}
	return map[string]any{
		"valid":        true,
		"row_count":    rows,
		"headers":      headers,
		"column_count": len(headers),
		"ragged":       ragged,
	}
}

func xmlMetadata(txt string) map[string]any {
	d := xml.NewDecoder(strings.NewReader(txt))
	d.Strict = false
	d.AutoClose = xml.HTMLAutoClose
	d.Entity = xml.HTMLEntity

	var (
		root     string
		count    int
		depth    int
		maxDepth int
	)
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return map[string]any{"valid": false, "parse_error": err.Error(), "element_count": count}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if root == "" {
				root = t.Name.Local
			}
			count++
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case xml.EndElement:
			depth--
		}
	}
	return map[string]any{
		"valid":         root != "",
		"root_element":  root,
		"element_count": count,
		"max_depth":     maxDepth,
	}
}

// unfoldLines joins RFC 5545 continuation lines.
func unfoldLines(txt string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(txt))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && len(out) > 0 {
			out[len(out)-1] += line[1:]
			continue
		}
		out = append(out, line)
	}
	return out
}

func icsMetadata(txt string) map[string]any {
	var (
		events, todos int
		inEvent       bool
		calName       string
	)
	summaries := []string{}
	for _, line := range unfoldLines(txt) {
		upper := strings.ToUpper(line)
		switch {
		case upper == "BEGIN:VEVENT":
			events++
			inEvent = true
		case upper == "END:VEVENT":
			inEvent = false
		case upper == "BEGIN:VTODO":
			todos++
		case strings.HasPrefix(upper, "X-WR-CALNAME"):
			calName = propertyValue(line)
		case inEvent && strings.HasPrefix(upper, "SUMMARY"):
			if len(summaries) < constants.MaxSummariesInMeta {
				summaries = append(summaries, propertyValue(line))
			}
		}
	}
	meta := map[string]any{
		"valid":       events+todos > 0 || strings.Contains(strings.ToUpper(txt), "BEGIN:VCALENDAR"),
		"event_count": events,
		"todo_count":  todos,
		"summaries":   summaries,
	}
	if calName != "" {
		meta["calendar_name"] = calName
	}
	return meta
}

// propertyValue returns the value of "NAME;PARAM=x:value".
func propertyValue(line string) string {
	if i := strings.IndexByte(line, ':'); i >= 0 {
		return strings.TrimSpace(line[i+1:])
	}
	return ""
}

var bibEntry = regexp.MustCompile(`(?m)^\s*@([A-Za-z]+)\s*[{(]`)

func bibtexMetadata(txt string) map[string]any {
	types := map[string]int{}
	entries := 0
	for _, m := range bibEntry.FindAllStringSubmatch(txt, -1) {
		kind := strings.ToLower(m[1])
		switch kind {
		case "comment", "string", "preamble":
			continue
		}
		types[kind]++
		entries++
	}
	return map[string]any{
		"valid":       entries > 0,
		"entry_count": entries,
		"entry_types": types,
	}
}

var risTag = regexp.MustCompile(`^([A-Z][A-Z0-9])  - ?(.*)$`)

func risMetadata(txt string) map[string]any {
	var records int
	types := map[string]int{}
	titles := []string{}
	for _, line := range unfoldLines(txt) {
		m := risTag.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		switch m[1] {
		case "TY":
			records++
			types[strings.TrimSpace(m[2])]++
		case "TI", "T1":
			if len(titles) < constants.MaxSummariesInMeta {
				titles = append(titles, strings.TrimSpace(m[2]))
			}
		}
	}
	return map[string]any{
		"valid":        records > 0,
		"record_count": records,
		"record_types": types,
		"titles":       titles,
	}
}

// midiMetadata reads the MThd header and counts MTrk chunks. The text
// rendering is a one-line description since the payload is binary.
func midiMetadata(data []byte) (string, map[string]any) {
	if len(data) < 14 || string(data[:4]) != "MThd" {
		return "", map[string]any{"valid": false, "parse_error": "missing MThd header"}
	}
	hdrLen := int(binary.BigEndian.Uint32(data[4:8]))
	format := int(binary.BigEndian.Uint16(data[8:10]))
	declared := int(binary.BigEndian.Uint16(data[10:12]))
	division := int(binary.BigEndian.Uint16(data[12:14]))

	tracks := 0
	off := 8 + hdrLen
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		n := int(binary.BigEndian.Uint32(data[off+4 : off+8]))
		if id == "MTrk" {
			tracks++
		}
		off += 8 + n
	}
	meta := map[string]any{
		"valid":           true,
		"midi_format":     format,
		"declared_tracks": declared,
		"track_count":     tracks,
	}
	if division&0x8000 == 0 {
		meta["ticks_per_quarter"] = division
	} else {
		meta["smpte_division"] = division
	}
	txt := fmt.Sprintf("MIDI file: format %d, %d tracks", format, tracks)
	return txt, meta
}
