// Package arc formats commands for the robot controller's EZ-Script server
// and announces emotion labels with them.
package arc

import (
	"fmt"
	"strings"
)

// LabelVariable is the script variable that holds the current emotion.
const LabelVariable = "$EmotionLabel"

// quote makes s safe inside a double-quoted script string.
func quote(s string) string {
	return strings.ReplaceAll(s, `"`, "'")
}

// SayEZB speaks text through the EZ-B speaker.
func SayEZB(text string) string {
	return fmt.Sprintf(`SayEZB("%s")`, quote(text))
}

// Say speaks text through the host PC.
func Say(text string) string {
	return fmt.Sprintf(`Say("%s")`, quote(text))
}

// SetVariable assigns a lower-cased string value to a script variable.
func SetVariable(name, value string) string {
	return fmt.Sprintf(`%s = "%s"`, name, quote(strings.ToLower(value)))
}

// Print writes a diagnostic line to the controller's script console.
func Print(msg string) string {
	return fmt.Sprintf(`print("%s")`, quote(msg))
}

// AutoPositionFrame plays a named Auto Position frame.
func AutoPositionFrame(name string) string {
	return fmt.Sprintf(`ControlCommand("Auto Position","AutoPositionFrame","%s")`, quote(name))
}

// AutoPositionStop halts any running Auto Position action.
func AutoPositionStop() string {
	return `ControlCommand("Auto Position","Stop")`
}
