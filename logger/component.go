package logger

import "fmt"

// Component prefixes every message with a component tag, e.g. "[capture] ".
// The zero value logs without a tag.
type Component struct {
	tag string
}

// With returns a Component logger for name.
func With(name string) Component {
	if name == "" {
		return Component{}
	}
	return Component{tag: "[" + name + "] "}
}

func (c Component) Debugf(format string, v ...interface{}) {
	output(DEBUG, 3, c.tag+fmt.Sprintf(format, v...))
}

func (c Component) Infof(format string, v ...interface{}) {
	output(INFO, 3, c.tag+fmt.Sprintf(format, v...))
}

func (c Component) Warnf(format string, v ...interface{}) {
	output(WARN, 3, c.tag+fmt.Sprintf(format, v...))
}

func (c Component) Errorf(format string, v ...interface{}) {
	output(ERROR, 3, c.tag+fmt.Sprintf(format, v...))
}
