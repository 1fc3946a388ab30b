// Package cli holds presentation helpers shared by cmd/solenode,
// adapted from the teacher's utils_ui.go (github.com/fatih/color).
package cli

import "github.com/fatih/color"

// Success prints a green, checkmark-prefixed status line.
func Success(format string, a ...interface{}) {
	color.Green("✓ "+format, a...)
}

// Error prints a red, cross-prefixed status line.
func Error(format string, a ...interface{}) {
	color.Red("✗ "+format, a...)
}

// Info prints a cyan status line.
func Info(format string, a ...interface{}) {
	color.Cyan("• "+format, a...)
}

// Warning prints a yellow status line.
func Warning(format string, a ...interface{}) {
	color.Yellow("! "+format, a...)
}

// Forged prints a bold-yellow line for a freshly minted block.
func Forged(format string, a ...interface{}) {
	c := color.New(color.FgYellow, color.Bold)
	c.Printf("⛏ "+format+"\n", a...)
}

// Network prints a blue line for peer/gossip activity.
func Network(format string, a ...interface{}) {
	c := color.New(color.FgBlue)
	c.Printf("⇄ "+format+"\n", a...)
}

// Banner is printed once at node startup.
const Banner = `
  ___  ___  _    ___     ___  ___   _
 / __|/ _ \| |  | __|   | _ \/ _ \ / \
 \__ \ (_) | |__| _|    |  _/ (_) / _ \
 |___/\___/|____|___|   |_|  \___/_/ \_\

  Proof-of-Authority validator node
`
