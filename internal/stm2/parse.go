package stm2

import (
	"math"
	"strconv"
	"strings"
)

// Sample is one parsed measurement line.
type Sample struct {
	Time      float64 `json:"time"`
	Rate      float64 `json:"rate"`
	Thickness float64 `json:"thickness"`
	Frequency float64 `json:"frequency"`
}

const fieldCount = 4

var markers = []string{"Start", "Stop", "Time"}

// IsMarker reports whether line is a header or footer written around a
// recording (Start..., Stop..., Time,Rate,...).
func IsMarker(line string) bool {
	for _, m := range markers {
		if strings.HasPrefix(line, m) {
			return true
		}
	}
	return false
}

// Clean strips line terminators, surrounding whitespace and invalid UTF-8.
func Clean(line string) string {
	line = strings.ToValidUTF8(line, "")
	return strings.TrimSpace(strings.TrimRight(line, "\r\n"))
}

// Parse converts a single log line into a Sample. The boolean is false when
// the line is a marker or does not hold exactly four finite decimal numbers.
// A single trailing separator is allowed.
func Parse(line string) (Sample, bool) {
	line = Clean(line)
	if line == "" || IsMarker(line) {
		return Sample{}, false
	}

	tokens := strings.Split(line, ",")
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}
	if n := len(tokens); n > 0 && tokens[n-1] == "" {
		tokens = tokens[:n-1]
	}
	if len(tokens) != fieldCount {
		return Sample{}, false
	}

	var values [fieldCount]float64
	for i, tok := range tokens {
		if isHex(tok) {
			return Sample{}, false
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Sample{}, false
		}
		values[i] = v
	}

	return Sample{
		Time:      values[0],
		Rate:      values[1],
		Thickness: values[2],
		Frequency: values[3],
	}, true
}

// isHex reports whether tok uses the 0x float syntax ParseFloat accepts.
func isHex(tok string) bool {
	tok = strings.TrimLeft(tok, "+-")
	return len(tok) >= 2 && tok[0] == '0' && (tok[1] == 'x' || tok[1] == 'X')
}

// Progress returns thickness as a percentage of target. A non-positive
// target disables the computation and yields zero.
func Progress(thickness, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return thickness / target * 100
}
