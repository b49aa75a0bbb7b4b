package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: invoice <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  generate   Export invoice files to PDF")
	fmt.Fprintln(w, "  profile    Show, save or clear the company profile")
	fmt.Fprintln(w, "  diagnose   Check how a logo URL can be loaded")
	fmt.Fprintln(w, "  doctor     Check the system for export readiness")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'invoice help <command>' for details on a specific command.")
}

// printGenerateUsage prints usage for the generate command.
func printGenerateUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: invoice generate <file|dir>... [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Export invoice YAML files to PDF. Each invoice is captured from its")
	fmt.Fprintln(w, "rendered preview, and falls back to a drawn template when capture fails.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  file|dir   Invoice file (.yaml, .yml) or directory of them")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output:")
	fmt.Fprintln(w, "  -o, --output <dir>          Output directory")
	fmt.Fprintln(w, "  -w, --workers <n>           Parallel exporters (0 = auto)")
	fmt.Fprintln(w, "      --template-only         Skip browser capture")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Profile:")
	fmt.Fprintln(w, "      --save-profile          Save the company of the first invoice")
	fmt.Fprintln(w, "      --no-profile            Ignore the saved company profile")
	fmt.Fprintln(w)
	printPipelineFlags(w)
	fmt.Fprintln(w)
	printCommonFlags(w)
}

// printProfileUsage prints usage for the profile command.
func printProfileUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: invoice profile <show|set|clear> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Manage the company profile merged into every invoice.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Subcommands:")
	fmt.Fprintln(w, "  show    Print the saved profile")
	fmt.Fprintln(w, "  set     Update the saved profile (name and email are required)")
	fmt.Fprintln(w, "  clear   Remove the saved profile")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Set flags:")
	fmt.Fprintln(w, "      --name <s>              Company name")
	fmt.Fprintln(w, "      --address <s>           Street address")
	fmt.Fprintln(w, "      --city <s>              City")
	fmt.Fprintln(w, "      --phone <s>             Phone number")
	fmt.Fprintln(w, "      --email <s>             Billing email")
	fmt.Fprintln(w, "      --logo <url>            Logo URL (http(s) image or data: URI)")
	fmt.Fprintln(w, "      --bank-info <s>         Payment details")
	fmt.Fprintln(w)
	printCommonFlags(w)
}

// printDiagnoseUsage prints usage for the diagnose command.
func printDiagnoseUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: invoice diagnose <url> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run every load strategy against an image URL and report which one")
	fmt.Fprintln(w, "works, with suggestions for hosts that block cross-origin reads.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "      --json                  Output as JSON")
	fmt.Fprintln(w)
	printPipelineFlags(w)
	fmt.Fprintln(w)
	printCommonFlags(w)
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: invoice doctor [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check the browser, environment and profile for export readiness.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "      --json                  Output as JSON")
	fmt.Fprintln(w, "      --launch                Launch the browser and report its version")
}

func printPipelineFlags(w io.Writer) {
	fmt.Fprintln(w, "Pipeline:")
	fmt.Fprintln(w, "      --origin <url>          Application origin for cross-origin checks")
	fmt.Fprintln(w, "      --settle-delay <d>      Pause before capture (e.g., 1s)")
	fmt.Fprintln(w, "      --strategy-timeout <d>  Timeout per logo load attempt (e.g., 8s)")
	fmt.Fprintln(w, "      --assets <dir>          Preview template and style override")
}

func printCommonFlags(w io.Writer) {
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -c, --config <name>         Config file name or path")
	fmt.Fprintln(w, "  -q, --quiet                 Only show errors")
	fmt.Fprintln(w, "  -v, --verbose               Show detailed progress")
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) int {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return ExitSuccess
	}

	switch args[0] {
	case "generate":
		printGenerateUsage(env.Stdout)
	case "profile":
		printProfileUsage(env.Stdout)
	case "diagnose":
		printDiagnoseUsage(env.Stdout)
	case "doctor":
		printDoctorUsage(env.Stdout)
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: invoice version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: invoice help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
		return ExitUsage
	}
	return ExitSuccess
}
