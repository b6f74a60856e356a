//go:build rp2040 || rp2350

package logx

var minLevel = LevelInfo

// SetLevel sets the minimum level for all components.
func SetLevel(l Level) { minLevel = l }

// printArgs writes k=v pairs without fmt; unknown value types print as "?".
func printArgs(args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		k, _ := args[i].(string)
		print(" ", k, "=")
		switch v := args[i+1].(type) {
		case string:
			print(v)
		case int:
			print(v)
		case uint32:
			print(v)
		case bool:
			print(v)
		case error:
			print(v.Error())
		default:
			print("?")
		}
	}
}

func log(l Level, tag string, c Component, msg string, args []any) {
	if l < minLevel {
		return
	}
	print(tag, " [", string(c), "] ", msg)
	printArgs(args)
	println()
}

func Debug(c Component, msg string, args ...any) { log(LevelDebug, "D", c, msg, args) }
func Info(c Component, msg string, args ...any)  { log(LevelInfo, "I", c, msg, args) }
func Warn(c Component, msg string, args ...any)  { log(LevelWarn, "W", c, msg, args) }
func Error(c Component, msg string, args ...any) { log(LevelError, "E", c, msg, args) }
