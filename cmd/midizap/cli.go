package main

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/gethiox/midizap/internal/pkg/logger"
	"github.com/logrusorgru/aurora"
)

type TimeNanosecond time.Time

func (j *TimeNanosecond) UnmarshalJSON(b []byte) error {
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*j = TimeNanosecond(time.Unix(0, v))
	return nil
}

func (j TimeNanosecond) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(j))
}

type Entry struct {
	Ts     TimeNanosecond `json:"ts"`
	Caller string         `json:"caller"`
	Msg    string         `json:"msg"`
	Level  int            `json:"level"`

	Section string `json:"section"`
	Binding string `json:"binding"`
	Port    *int   `json:"port"`
	Device  string `json:"device"`
	File    string `json:"file"`
}

func unpack(data []byte) (Entry, error) {
	var v Entry
	err := json.Unmarshal(data, &v)
	return v, err
}

func gray(v uint8) aurora.Color {
	if v > 23 {
		v = 23
	}
	return aurora.Color(232+v) << 16
}

func color(r, g, b uint8) aurora.Color {
	return aurora.Color(16+36*r+6*g+b) << 16
}

func terminator(r rune) bool {
	if r >= 0x40 && r <= 0x7e {
		return true
	}
	return false
}

// returns random color for string, will return the same color for the same string
func colorForString(au aurora.Aurora, s string) aurora.Value {
	h := fnv.New32a()
	h.Write([]byte(s))
	sum := h.Sum32()

	r, g, b := uint8(sum)&0b00000111, uint8(sum>>8)&0b00000111, uint8(sum>>16)&0b00000111
	if r > 5 {
		r = 5
	}
	if g > 5 {
		g = 5
	}
	if b > 5 {
		b = 5
	}

	// avoid dark colors
	if r+g+b < 3 {
		r += 1
		g += 1
		b += 1
	}

	return au.Index(16+36*r+6*g+b, s)
}

// rawStringLen returns a len of string ignoring included escape sequences
func rawStringLen(s string) int {
	var sequence bool
	var escLen, sum int

	for i, r := range s {
		if !sequence {
			if r == '\033' && i < len(s)-1 && s[i+1] == '[' {
				sequence = true
				escLen = 1
			}
			continue
		}
		escLen++
		if r == '[' && s[i-1] == '\033' {
			continue
		}
		if terminator(r) {
			sequence = false
			sum += escLen
			escLen = 0
		}
	}
	return len(s) - sum
}

func levelColor(level int) aurora.Color {
	switch level {
	case logger.ErrorLvl:
		return color(5, 1, 1)
	case logger.WarningLvl:
		return color(5, 5, 1)
	case logger.InfoLvl:
		return gray(20)
	case logger.RegexLvl:
		return color(2, 4, 5)
	case logger.StrokesLvl:
		return gray(16)
	case logger.KeysLvl:
		return color(2, 5, 2)
	case logger.MidiLvl:
		return color(4, 3, 5)
	}
	return gray(9)
}

// prepareString renders one entry, width -1 disables fitting it into a
// line. Entries above logLevel are hidden.
func prepareString(msg Entry, au aurora.Aurora, width, logLevel int) string {
	if msg.Level > logLevel {
		return ""
	}

	t := time.Time(msg.Ts)
	timestamp := fmt.Sprintf(
		"[%s]",
		au.Reset(t.Format("15:04:05.000")).Colorize(color(1, 1, 5)).String(),
	)

	var fields []string
	if msg.File != "" {
		fields = append(fields, fmt.Sprintf("[file=%s]", colorForString(au, msg.File)))
	}
	if msg.Section != "" {
		fields = append(fields, fmt.Sprintf("[section=%s]", colorForString(au, msg.Section)))
	}
	if msg.Binding != "" {
		fields = append(fields, fmt.Sprintf("[%s]", colorForString(au, msg.Binding)))
	}
	if msg.Port != nil {
		fields = append(fields, fmt.Sprintf("[port=%d]", *msg.Port+1))
	}
	if msg.Device != "" {
		fields = append(fields, fmt.Sprintf("[dev=%s]", colorForString(au, msg.Device)))
	}
	if logLevel >= logger.DebugLvl && msg.Caller != "" {
		x := strings.SplitN(msg.Caller, ":", 2)
		if len(x) == 2 {
			fields = append(fields, fmt.Sprintf("(%s:%s)", colorForString(au, x[0]), x[1]))
		}
	}
	f := strings.Join(fields, " ")

	msgColor := levelColor(msg.Level)
	if width < 0 {
		m := au.Reset(msg.Msg).Colorize(msgColor).String()
		if f == "" {
			return fmt.Sprintf("%s %s", timestamp, m)
		}
		return fmt.Sprintf("%s %s %s", timestamp, m, f)
	}

	fieldsLen := rawStringLen(f)
	timeLen := rawStringLen(timestamp)
	msgLen := len(msg.Msg)

	var m string
	freeSpace := width - (timeLen + 1 + msgLen + 1 + fieldsLen)
	if freeSpace < 0 {
		limit := width - (fieldsLen + 1 + timeLen + 1) - 3
		if limit < 20 {
			m = au.Reset(msg.Msg).Colorize(msgColor).String()
			f = au.Gray(12, "(fields hidden)").String()
			freeSpace = width - (timeLen + 1 + msgLen + 1 + rawStringLen(f))
			if freeSpace < 0 {
				freeSpace = 0
			}
		} else {
			m = au.Reset(msg.Msg[:limit] + "(…)").Colorize(msgColor).String()
			freeSpace = 0
		}
	} else {
		m = au.Reset(msg.Msg).Colorize(msgColor).String()
	}

	return fmt.Sprintf("%s %s%s %s", timestamp, m, strings.Repeat(" ", freeSpace), f)
}
