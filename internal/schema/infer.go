package schema

import (
	"strconv"
	"strings"
	"time"
)

// TimestampLayouts are the layouts tried when timestamp detection is on.
var TimestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Inferrer accumulates whole-column type evidence one row at a time so a
// file of any size can be typed in a single streaming pass.
//
// Empty cells carry no type evidence; a column whose only values are empty
// stays text. Candidate order is integer, real, boolean, timestamp, text.
type Inferrer struct {
	names []string
	cols  []columnEvidence
}

type columnEvidence struct {
	seen    bool
	empty   bool
	isInt   bool
	isFloat bool
	isBool  bool
	isTime  bool
}

// NewInferrer creates an Inferrer for the given column names.
func NewInferrer(names []string, detectTimestamps bool) *Inferrer {
	cols := make([]columnEvidence, len(names))
	for i := range cols {
		cols[i] = columnEvidence{isInt: true, isFloat: true, isBool: true, isTime: detectTimestamps}
	}
	return &Inferrer{names: names, cols: cols}
}

// Observe records one row. Missing trailing cells count as empty.
func (inf *Inferrer) Observe(row []string) {
	for i := range inf.cols {
		v := ""
		if i < len(row) {
			v = strings.TrimSpace(row[i])
		}
		ev := &inf.cols[i]
		if v == "" {
			ev.empty = true
			continue
		}
		ev.seen = true
		if ev.isInt && !isInt(v) {
			ev.isInt = false
		}
		if ev.isFloat && !isFloat(v) {
			ev.isFloat = false
		}
		if ev.isBool && !isBool(v) {
			ev.isBool = false
		}
		if ev.isTime && !IsTimestamp(v) {
			ev.isTime = false
		}
	}
}

// Schema returns the inferred schema for everything observed so far.
func (inf *Inferrer) Schema() Schema {
	out := make(Schema, len(inf.names))
	for i, name := range inf.names {
		ev := inf.cols[i]
		t := TypeText
		switch {
		case !ev.seen:
		case ev.isInt:
			t = TypeInt64
		case ev.isFloat:
			t = TypeFloat64
		case ev.isBool:
			t = TypeBool
		case ev.isTime:
			t = TypeTimestamp
		}
		out[i] = Column{Name: name, Type: t, Nullable: ev.empty && t != TypeText}
	}
	return out
}

func isInt(v string) bool {
	_, err := strconv.ParseInt(v, 10, 64)
	return err == nil
}

func isFloat(v string) bool {
	if _, err := strconv.ParseFloat(v, 64); err != nil {
		return false
	}
	// ParseFloat also accepts "NaN", "Inf" and hex literals such as
	// 0x1p3; those stay text.
	return !strings.ContainsAny(v, "nNiIxX")
}

func isBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "false":
		return true
	}
	return false
}

// IsTimestamp reports whether v parses with one of TimestampLayouts.
func IsTimestamp(v string) bool {
	_, err := ParseTimestamp(v)
	return err == nil
}

// ParseTimestamp parses v using the first matching layout.
func ParseTimestamp(v string) (time.Time, error) {
	var lastErr error
	for _, layout := range TimestampLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
