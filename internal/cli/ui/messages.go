package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a standardized CLI message
//
//	✗ TYPE NOT FOUND: rigging.Actr
//	   No metanode type is registered as 'rigging.Actr'.
//
//	   Did you mean: rigging.Actor?
//
//	   → List types: metanode ls --types
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Detail      string
	Suggestions []string
	Help        []string
	NoColor     bool
}

// Format renders the message
func (m Message) Format() string {
	var b strings.Builder

	var head, body *color.Color
	var symbol string
	switch m.Level {
	case LevelWarning:
		head, body, symbol = newColor(m.NoColor, color.FgYellow, color.Bold), newColor(m.NoColor, color.FgYellow), "!"
	case LevelInfo:
		head, body, symbol = newColor(m.NoColor, color.FgCyan, color.Bold), newColor(m.NoColor, color.FgCyan), "i"
	default:
		head, body, symbol = newColor(m.NoColor, color.FgRed, color.Bold), newColor(m.NoColor, color.FgRed), "✗"
	}

	if m.Context != "" {
		head.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(m.Context), m.Problem)
	} else {
		head.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}
	if m.Detail != "" {
		body.Fprintf(&b, "   %s\n", m.Detail)
	}
	if len(m.Suggestions) > 0 {
		b.WriteString("\n")
		newColor(m.NoColor, color.FgYellow).Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}
	if len(m.Help) > 0 {
		b.WriteString("\n")
		cyan := newColor(m.NoColor, color.FgCyan)
		for _, h := range m.Help {
			cyan.Fprintf(&b, "   → %s\n", h)
		}
	}
	return b.String()
}

// Write renders the message to w
func (m Message) Write(w io.Writer) {
	fmt.Fprint(w, m.Format())
}

// TypeNotFound reports an unregistered type name with close matches from
// the registered ones
func TypeNotFound(name string, registered []string, noColor bool) Message {
	return Message{
		Level:       LevelError,
		Context:     "type not found",
		Problem:     name,
		Detail:      fmt.Sprintf("No metanode type is registered as '%s'.", name),
		Suggestions: FindSimilar(name, registered, 3),
		Help:        []string{"List types: metanode ls --types"},
		NoColor:     noColor,
	}
}

// NodeNotFound reports a missing scene node
func NodeNotFound(name string, scene []string, noColor bool) Message {
	return Message{
		Level:       LevelError,
		Context:     "node not found",
		Problem:     name,
		Detail:      fmt.Sprintf("The scene has no node named '%s'.", name),
		Suggestions: FindSimilar(name, scene, 3),
		Help:        []string{"List metanodes: metanode ls"},
		NoColor:     noColor,
	}
}

// WriteSuccess writes a green check line
func WriteSuccess(w io.Writer, message string, noColor bool) {
	newColor(noColor, color.FgGreen, color.Bold).Fprintf(w, "✓ %s\n", message)
}

// WriteWarning writes a yellow warning line
func WriteWarning(w io.Writer, message string, noColor bool) {
	newColor(noColor, color.FgYellow).Fprintf(w, "! %s\n", message)
}
