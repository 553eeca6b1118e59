package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cjeanneret/PanView/internal/logic/orientation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (sessions, motion permission outcomes)
	LevelLive    = 2 // Live info (fused orientation updates)
	LevelVerbose = 3 // Verbose (state transitions, config details)
	LevelTrace   = 4 // Trace (raw pointer/sensor events, GPIO)
)

// Output formats accepted by SetFormat.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

var (
	mu     sync.Mutex
	level  atomic.Int32
	format = FormatConsole
	output zapcore.WriteSyncer = zapcore.Lock(os.Stdout)
	logger atomic.Pointer[zap.SugaredLogger]
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (sessions, permission results)
// 2 = live info (orientation updates)
// 3 = verbose (state transitions, configuration)
// 4 = trace (raw input events, GPIO)
func Init(debugLevel int) {
	mu.Lock()
	defer mu.Unlock()
	level.Store(int32(debugLevel))
	rebuild()
}

// SetOutput redirects all debug output to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = zapcore.Lock(zapcore.AddSync(w))
	rebuild()
}

// SetFormat selects the console or JSON encoder. Unknown values fall back to console.
func SetFormat(f string) {
	mu.Lock()
	defer mu.Unlock()
	if f != FormatJSON {
		f = FormatConsole
	}
	format = f
	rebuild()
}

// rebuild must be called with mu held.
func rebuild() {
	if level.Load() <= LevelOff {
		logger.Store(nil)
		return
	}

	var enc zapcore.Encoder
	if format == FormatJSON {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000000")
		cfg.CallerKey = ""
		enc = zapcore.NewConsoleEncoder(cfg)
	}
	core := zapcore.NewCore(enc, output, zapcore.DebugLevel)
	logger.Store(zap.New(core).Named("PanView").Sugar())
}

func get(minLevel int) *zap.SugaredLogger {
	if int(level.Load()) < minLevel {
		return nil
	}
	return logger.Load()
}

// Level returns the current debug level.
func Level() int {
	return int(level.Load())
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return Level() >= minLevel
}

// Sync flushes buffered output.
func Sync() {
	if l := logger.Load(); l != nil {
		_ = l.Sync()
	}
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if l := get(LevelInfo); l != nil {
		l.Infof(format, args...)
	}
}

// Summary prints an important summary (level 1).
func Summary(title string) {
	if l := get(LevelInfo); l != nil {
		l.Info("═══════════════════════════════════════")
		l.Infof("  %s", title)
		l.Info("═══════════════════════════════════════")
	}
}

// Permission logs a motion permission outcome for a session (level 1).
func Permission(session string, state string) {
	if l := get(LevelInfo); l != nil {
		l.Infow("motion permission", "session", session, "state", state)
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if l := get(LevelInfo); l != nil {
		l.Infof("  %s = %v", name, value)
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if l := get(LevelLive); l != nil {
		l.Infof("[LIVE] "+format, args...)
	}
}

// Orientation prints a fused orientation in degrees (level 2).
func Orientation(session string, o orientation.Orientation) {
	if l := get(LevelLive); l != nil {
		yaw, pitch := o.Degrees()
		l.Infof("[LIVE] %s: yaw=%7.2f° pitch=%6.2f°", session, yaw, pitch)
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if l := get(LevelVerbose); l != nil {
		l.Debugf(format, args...)
	}
}

// Printf is an alias for Verbose.
func Printf(format string, args ...interface{}) {
	Verbose(format, args...)
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if l := get(LevelVerbose); l != nil {
		l.Debugf("%s: %+v", name, v)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if l := get(LevelVerbose); l != nil {
		l.Debug("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		l.Debugf("  %s", name)
		l.Debug("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if l := get(LevelVerbose); l != nil {
		l.Debugf("Step %d: %s", num, description)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace).
func Trace(format string, args ...interface{}) {
	if l := get(LevelTrace); l != nil {
		l.Debugf("[TRACE] "+format, args...)
	}
}

// Pointer prints a raw pointer event (level 4).
func Pointer(kind string, id int, x, y float64) {
	if l := get(LevelTrace); l != nil {
		l.Debugf("[POINTER] %s id=%d x=%.1f y=%.1f", kind, id, x, y)
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if l := get(LevelTrace); l != nil {
		l.Debugf("[GPIO] %s pin=%d value=%v", operation, pin, value)
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if l := get(LevelInfo); l != nil {
		l.Errorw(err.Error())
	}
}

// Warn prints a warning with context (level 1+).
func Warn(msg string, err error) {
	if l := get(LevelInfo); l != nil {
		l.Warnw(msg, "error", err)
	}
}

// Fmt is a helper function that returns a formatted string
// only if debug is enabled (to avoid unnecessary allocations).
func Fmt(format string, args ...interface{}) string {
	if Level() > 0 {
		return fmt.Sprintf(format, args...)
	}
	return ""
}
