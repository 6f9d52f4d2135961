package console

import "github.com/fatih/color"

var (
	failureColor = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
	hintColor    = color.New(color.FgHiWhite)
	readingColor = color.New(color.FgHiWhite, color.Bold)
	writtenColor = color.New(color.FgGreen)
)

// Failure highlights the cause of a failed command.
func Failure(v any) string {
	return failureColor.Sprint(v)
}

// Irq highlights an interrupt condition reported by the chip.
func Irq(v any) string {
	return warnColor.Sprint(v)
}

// Reading formats a measured value with its unit, e.g. "320.48 lux".
func Reading(value float64, unit string) string {
	return readingColor.Sprintf("%.2f", value) + " " + unit
}

// Word formats a register word read from the chip.
func Word(v uint16) string {
	return readingColor.Sprintf("%#04x", v)
}

// Written formats a register word sent to the chip.
func Written(v uint16) string {
	return writtenColor.Sprintf("%#04x", v)
}
