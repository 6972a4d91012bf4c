package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// walkCommands calls fn on root and every command below it, parents before
// their children and siblings in registration order.
func walkCommands(root *cobra.Command, fn func(*cobra.Command)) {
	stack := []*cobra.Command{root}
	for len(stack) > 0 {
		cmd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(cmd)

		subs := cmd.Commands()
		for i := len(subs) - 1; i >= 0; i-- {
			stack = append(stack, subs[i])
		}
	}
}

// visibleSubcommands returns the children of cmd that help should list.
func visibleSubcommands(cmd *cobra.Command) []*cobra.Command {
	var subs []*cobra.Command
	for _, sub := range cmd.Commands() {
		if sub.IsAvailableCommand() {
			subs = append(subs, sub)
		}
	}
	return subs
}

// enrichParentLong lists the visible subcommands of a group like config at
// the end of its long help, names padded to the longest one.
func enrichParentLong(cmd *cobra.Command) {
	subs := visibleSubcommands(cmd)
	if len(subs) == 0 {
		return
	}

	width := 0
	for _, sub := range subs {
		width = max(width, len(sub.Name()))
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimRight(cmd.Long, "\n"))
	sb.WriteString("\n\nSubcommands:\n")
	for _, sub := range subs {
		fmt.Fprintf(&sb, "  %-*s  %s\n", width, sub.Name(), sub.Short)
	}
	cmd.Long = sb.String()
}
