package main

import (
	"errors"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"
)

// ErrUsage wraps flag parsing failures.
var ErrUsage = errors.New("invalid usage")

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// pipelineFlags override the export and image settings of the config.
type pipelineFlags struct {
	origin          string
	settleDelay     string
	strategyTimeout string
	assets          string
}

// generateFlags holds flags for the generate command.
type generateFlags struct {
	common       commonFlags
	pipeline     pipelineFlags
	output       string
	workers      int
	templateOnly bool
	saveProfile  bool
	noProfile    bool
}

// companyFlags holds the fields of profile set.
type companyFlags struct {
	common   commonFlags
	name     string
	address  string
	city     string
	phone    string
	email    string
	logo     string
	bankInfo string
}

// diagnoseFlags holds flags for the diagnose command.
type diagnoseFlags struct {
	common   commonFlags
	pipeline pipelineFlags
	json     bool
}

// doctorFlags holds flags for the doctor command.
type doctorFlags struct {
	json   bool
	launch bool
}

// addCommonFlags adds config and verbosity flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show detailed progress")
}

// addPipelineFlags adds the export tuning flags to a FlagSet.
func addPipelineFlags(fs *flag.FlagSet, f *pipelineFlags) {
	fs.StringVar(&f.origin, "origin", "", "application origin for cross-origin checks")
	fs.StringVar(&f.settleDelay, "settle-delay", "", "pause before capture (e.g., 1s, 500ms)")
	fs.StringVar(&f.strategyTimeout, "strategy-timeout", "", "timeout per logo load attempt (e.g., 8s)")
	fs.StringVar(&f.assets, "assets", "", "directory overriding the preview template and style")
}

// newFlagSet creates a FlagSet that reports errors to w instead of exiting.
func newFlagSet(name string, w io.Writer, usage func(io.Writer)) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(w)
	fs.Usage = func() { usage(w) }
	return fs
}

// parseWith parses args and wraps failures in ErrUsage.
func parseWith(fs *flag.FlagSet, args []string) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return fs.Args(), nil
}

// parseGenerateFlags parses generate flags and returns positional args.
func parseGenerateFlags(args []string, w io.Writer) (*generateFlags, []string, error) {
	f := &generateFlags{}
	fs := newFlagSet("generate", w, printGenerateUsage)

	fs.StringVarP(&f.output, "output", "o", "", "output directory")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel exporters (0 = auto)")
	fs.BoolVar(&f.templateOnly, "template-only", false, "skip browser capture, draw the template")
	fs.BoolVar(&f.saveProfile, "save-profile", false, "save the company of the first invoice as profile")
	fs.BoolVar(&f.noProfile, "no-profile", false, "ignore the saved company profile")
	addCommonFlags(fs, &f.common)
	addPipelineFlags(fs, &f.pipeline)

	rest, err := parseWith(fs, args)
	return f, rest, err
}

// parseCompanyFlags parses profile set flags.
func parseCompanyFlags(args []string, w io.Writer) (*companyFlags, []string, error) {
	f := &companyFlags{}
	fs := newFlagSet("profile set", w, printProfileUsage)

	fs.StringVar(&f.name, "name", "", "company name")
	fs.StringVar(&f.address, "address", "", "street address")
	fs.StringVar(&f.city, "city", "", "city")
	fs.StringVar(&f.phone, "phone", "", "phone number")
	fs.StringVar(&f.email, "email", "", "billing email")
	fs.StringVar(&f.logo, "logo", "", "logo URL (http(s) image or data: URI)")
	fs.StringVar(&f.bankInfo, "bank-info", "", "payment details printed on invoices")
	addCommonFlags(fs, &f.common)

	rest, err := parseWith(fs, args)
	return f, rest, err
}

// parseDiagnoseFlags parses diagnose flags and returns positional args.
func parseDiagnoseFlags(args []string, w io.Writer) (*diagnoseFlags, []string, error) {
	f := &diagnoseFlags{}
	fs := newFlagSet("diagnose", w, printDiagnoseUsage)

	fs.BoolVar(&f.json, "json", false, "output as JSON")
	addCommonFlags(fs, &f.common)
	addPipelineFlags(fs, &f.pipeline)

	rest, err := parseWith(fs, args)
	return f, rest, err
}

// parseDoctorFlags parses doctor flags.
func parseDoctorFlags(args []string, w io.Writer) (*doctorFlags, error) {
	f := &doctorFlags{}
	fs := newFlagSet("doctor", w, printDoctorUsage)

	fs.BoolVar(&f.json, "json", false, "output as JSON")
	fs.BoolVar(&f.launch, "launch", false, "launch the browser and report its version")

	_, err := parseWith(fs, args)
	return f, err
}
