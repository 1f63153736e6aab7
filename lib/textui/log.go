// Copyright (C) 2019-2022  Ambassador Labs
// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: Apache-2.0
//
// Contains code based on:
// https://github.com/datawire/dlib/blob/b09ab2e017e16d261f05fff5b3b860d645e774d4/dlog/logger_logrus.go
// https://github.com/datawire/dlib/blob/b09ab2e017e16d261f05fff5b3b860d645e774d4/dlog/logger_testing.go
// https://github.com/telepresenceio/telepresence/blob/ece94a40b00a90722af36b12e40f91cbecc0550c/pkg/log/formatter.go


package textui

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"git.lukeshu.com/go/typedsync"
	"github.com/datawire/dlib/dlog"
	"github.com/spf13/pflag"
)

// levelNames is indexed by dlog.LogLevel.
var levelNames = [...]struct {
	flag string
	tag  string
}{
	dlog.LogLevelError: {"error", "ERR"},
	dlog.LogLevelWarn:  {"warn", "WRN"},
	dlog.LogLevelInfo:  {"info", "INF"},
	dlog.LogLevelDebug: {"debug", "DBG"},
	dlog.LogLevelTrace: {"trace", "TRC"},
}

// LogLevelFlag is a pflag.Value for a dlog.LogLevel.
type LogLevelFlag struct {
	Level dlog.LogLevel
}

var _ pflag.Value = (*LogLevelFlag)(nil)

// Type implements pflag.Value.
func (lvl *LogLevelFlag) Type() string { return "loglevel" }

// Set implements pflag.Value.
func (lvl *LogLevelFlag) Set(str string) error {
	want := strings.ToLower(str)
	if want == "warning" {
		want = "warn"
	}
	for i, name := range levelNames {
		if name.flag == want {
			lvl.Level = dlog.LogLevel(i)
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %q", str)
}

// String implements pflag.Value.
func (lvl *LogLevelFlag) String() string {
	if int(lvl.Level) >= len(levelNames) {
		panic(fmt.Errorf("invalid log level: %#v", lvl.Level))
	}
	return levelNames[lvl.Level].flag
}

type logger struct {
	parent *logger
	out    io.Writer
	lvl    dlog.LogLevel

	// only valid if parent is non-nil
	fieldKey string
	fieldVal any
}

var _ dlog.OptimizedLogger = (*logger)(nil)

// NewLogger returns a dlog.Logger that writes one line per entry to
// out, discarding entries less severe than lvl.
func NewLogger(out io.Writer, lvl dlog.LogLevel) dlog.Logger {
	return &logger{
		out: out,
		lvl: lvl,
	}
}

// Helper implements dlog.Logger.
func (l *logger) Helper() {}

// WithField implements dlog.Logger.
func (l *logger) WithField(key string, value any) dlog.Logger {
	return &logger{
		parent:   l,
		out:      l.out,
		lvl:      l.lvl,
		fieldKey: key,
		fieldVal: value,
	}
}

type logWriter struct {
	log *logger
	lvl dlog.LogLevel
}

// Write implements io.Writer.
func (lw logWriter) Write(data []byte) (int, error) {
	lw.log.log(lw.lvl, func(w io.Writer) {
		_, _ = w.Write(data)
	})
	return len(data), nil
}

// StdLogger implements dlog.Logger.
func (l *logger) StdLogger(lvl dlog.LogLevel) *log.Logger {
	return log.New(logWriter{log: l, lvl: lvl}, "", 0)
}

// Log implements dlog.Logger.
func (l *logger) Log(lvl dlog.LogLevel, msg string) {
	panic("should not happen: optimized log methods should be used instead")
}

// UnformattedLog implements dlog.OptimizedLogger.
func (l *logger) UnformattedLog(lvl dlog.LogLevel, args ...any) {
	l.log(lvl, func(w io.Writer) {
		_, _ = printer.Fprint(w, args...)
	})
}

// UnformattedLogln implements dlog.OptimizedLogger.
func (l *logger) UnformattedLogln(lvl dlog.LogLevel, args ...any) {
	l.log(lvl, func(w io.Writer) {
		_, _ = printer.Fprintln(w, args...)
	})
}

// UnformattedLogf implements dlog.OptimizedLogger.
func (l *logger) UnformattedLogf(lvl dlog.LogLevel, format string, args ...any) {
	l.log(lvl, func(w io.Writer) {
		_, _ = printer.Fprintf(w, format, args...)
	})
}

const (
	thisModule  = "git.lukeshu.com/btrfs-rootitem"
	thisPackage = thisModule + "/lib/textui"
	fieldPrefix = "btrfs-rootitem."
	timeFmt     = "2006-01-02 15:04:05.0000"
)

var (
	logBufPool = typedsync.Pool[*bytes.Buffer]{
		New: func() *bytes.Buffer {
			return new(bytes.Buffer)
		},
	}
	logMu      sync.Mutex
	thisModDir string
)

func init() {
	//nolint:dogsled // I can't change the signature of the stdlib.
	_, file, _, _ := runtime.Caller(0)
	thisModDir = filepath.Dir(filepath.Dir(filepath.Dir(file)))
}

type logField struct {
	key string
	val any
}

// fields returns the logger's fields, innermost value winning, split
// into those printed before the message and those printed after it.
func (l *logger) fields() (early, late []logField) {
	seen := make(map[string]struct{})
	var all []logField
	for f := l; f.parent != nil; f = f.parent {
		if _, dup := seen[f.fieldKey]; dup {
			continue
		}
		seen[f.fieldKey] = struct{}{}
		all = append(all, logField{key: f.fieldKey, val: f.fieldVal})
	}
	sort.Slice(all, func(i, j int) bool {
		iOrd, jOrd := fieldOrd(all[i].key), fieldOrd(all[j].key)
		if iOrd != jOrd {
			return iOrd < jOrd
		}
		return all[i].key < all[j].key
	})
	split := sort.Search(len(all), func(i int) bool {
		return fieldOrd(all[i].key) >= 0
	})
	return all[:split], all[split:]
}

// caller returns the first stack frame outside of this package that
// belongs to this module, as a path relative to the module root.
func caller() (file string, line int, ok bool) {
	// skip runtime.Callers, caller, and logger.log
	var pcs [25]uintptr
	frames := runtime.CallersFrames(pcs[:runtime.Callers(3, pcs[:])])
	for f, more := frames.Next(); more; f, more = frames.Next() {
		if !strings.HasPrefix(f.Function, thisModule+"/") || strings.HasPrefix(f.Function, thisPackage+".") {
			continue
		}
		return strings.TrimPrefix(f.File, thisModDir+"/"), f.Line, true
	}
	return "", 0, false
}

// log writes a line of the form
//
//	TIME LVL early-fields : message : late-fields (from file:line)
func (l *logger) log(lvl dlog.LogLevel, writeMsg func(io.Writer)) {
	if lvl > l.lvl {
		return
	}
	buf, _ := logBufPool.Get()
	defer logBufPool.Put(buf)
	defer buf.Reset()

	buf.WriteString(time.Now().Format(timeFmt))
	if int(lvl) < len(levelNames) {
		buf.WriteByte(' ')
		buf.WriteString(levelNames[lvl].tag)
	}

	early, late := l.fields()
	for _, f := range early {
		writeField(buf, f.key, f.val)
	}
	buf.WriteString(" : ")
	writeMsg(buf)

	file, line, haveCaller := caller()
	if len(late) > 0 || haveCaller {
		buf.WriteString(" :")
	}
	for _, f := range late {
		writeField(buf, f.key, f.val)
	}
	if haveCaller {
		fmt.Fprintf(buf, " (from %s:%d)", file, line)
	}
	buf.WriteByte('\n')

	logMu.Lock()
	_, _ = l.out.Write(buf.Bytes())
	logMu.Unlock()
}

// fieldOrd returns the sort-position for a given log-field-key.
// Negative keys go to the left of the message, in increasing order.
func fieldOrd(key string) int {
	switch key {
	case "THREAD": // dgroup
		return -99
	case fieldPrefix + "mountpoint":
		return -3
	case fieldPrefix + "file":
		return -2
	case fieldPrefix + "subvol":
		return -1
	default:
		return 1
	}
}

func needsQuote(s string) bool {
	if strings.HasPrefix(s, `"`) {
		return true
	}
	for _, r := range s {
		if r == ' ' || !unicode.IsPrint(r) {
			return true
		}
	}
	return false
}

func writeField(w io.Writer, key string, val any) {
	valStr := printer.Sprint(val)
	if needsQuote(valStr) {
		valStr = strconv.Quote(valStr)
	}

	switch {
	case key == "THREAD":
		if valStr == "" || valStr == "/main" {
			return
		}
		key = "thread"
		if strings.HasPrefix(valStr, "/main/") {
			valStr = valStr[len("/main/"):]
		} else {
			valStr = strings.TrimPrefix(valStr, "/")
		}
	case strings.HasPrefix(key, fieldPrefix):
		key = strings.TrimPrefix(key, fieldPrefix)
	}

	fmt.Fprintf(w, " %s=%s", key, valStr)
}
