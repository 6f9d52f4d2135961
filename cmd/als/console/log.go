package console

import (
	"fmt"
	"io"
	"os"
)

const PictoBulb = "💡"
const PictoBell = "🔔"
const PictoCheck = "✅"
const PictoStop = "🚫"
const PictoPin = "📌"

var writer io.Writer = os.Stdout
var errWriter io.Writer = os.Stderr

func SetOutput(w, errw io.Writer) {
	writer = w
	errWriter = errw
}

func Output() io.Writer {
	return writer
}

func Errorf(msg string, args ...interface{}) {
	_, _ = fmt.Fprintf(errWriter, "%s: %s\n", failureColor.Sprint("ERROR"), fmt.Sprintf(msg, args...))
}

func Warnf(msg string, args ...interface{}) {
	_, _ = fmt.Fprintf(errWriter, "%s: %s\n", warnColor.Sprint("WARN"), fmt.Sprintf(msg, args...))
}

func Infof(msg string, args ...interface{}) {
	_, _ = fmt.Fprintf(writer, "%s %s\n", hintColor.Sprint("..."), fmt.Sprintf(msg, args...))
}

func PInfof(picto, msg string, args ...interface{}) {
	_, _ = fmt.Fprintf(writer, "%s %s\n", picto, fmt.Sprintf(msg, args...))
}

func Printf(msg string, args ...interface{}) {
	_, _ = fmt.Fprintf(writer, msg, args...)
}
